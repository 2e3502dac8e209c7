// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package engagement

import (
	"regexp"
	"strings"

	"github.com/tomtom215/notifyrank/internal/models"
)

var (
	urgentPattern = regexp.MustCompile(`(?i)\b(urgent|asap|immediately|important|emergency|critical|alert|action required|expires? (?:soon|today))\b`)

	promoPattern = regexp.MustCompile(`(?i)(\b(sale|offer|discount|deal|deals|promo|coupon|voucher|cashback|limited time|buy now|shop now|free shipping|subscribe)\b|\d+\s?% off)`)

	otpKeywordPattern = regexp.MustCompile(`(?i)\b(code|verification|verify|passcode|pin|one[- ]time|security code|login code)\b`)
	otpDigitsPattern  = regexp.MustCompile(`\b\d{4,8}\b`)
	otpLiteralPattern = regexp.MustCompile(`(?i)\botp\b`)

	// Title made of one to three capitalized words, e.g. "Anna" or "Anna Smith".
	personTitlePattern = regexp.MustCompile(`^\p{Lu}[\p{Ll}'-]+(?: \p{Lu}[\p{Ll}'-]+){0,2}$`)

	// Message text prefixed by a sender, e.g. "Anna: see you soon".
	personPrefixPattern = regexp.MustCompile(`^\p{Lu}\p{Ll}[\p{L}'-]*(?: \p{Lu}\p{Ll}[\p{L}'-]*)?:\s`)
)

// textFlags are the content-derived boolean features of a notification.
type textFlags struct {
	Urgent   bool
	Promo    bool
	OTP      bool
	Person   bool
	Question bool
}

// notificationText joins the searchable text fields of n.
func notificationText(n *models.NotificationEvent) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{n.Title, n.Text, n.BigText, n.SubText} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func extractTextFlags(n *models.NotificationEvent) textFlags {
	text := notificationText(n)
	return textFlags{
		Urgent:   urgentPattern.MatchString(text),
		Promo:    promoPattern.MatchString(text),
		OTP:      otpLiteralPattern.MatchString(text) || (otpKeywordPattern.MatchString(text) && otpDigitsPattern.MatchString(text)),
		Person:   looksLikePerson(n),
		Question: strings.Contains(text, "?"),
	}
}

func looksLikePerson(n *models.NotificationEvent) bool {
	title := strings.TrimSpace(n.Title)
	if title != "" && personTitlePattern.MatchString(title) {
		return true
	}
	return personPrefixPattern.MatchString(strings.TrimSpace(n.Text))
}

// isHighPriorityApp reports whether the lowercased package contains any of
// the given lowercase substrings.
func isHighPriorityApp(app string, substrings []string) bool {
	app = strings.ToLower(app)
	for _, s := range substrings {
		if s != "" && strings.Contains(app, s) {
			return true
		}
	}
	return false
}
