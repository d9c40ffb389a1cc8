package tgui

import "unicode/utf8"

// TruncRunes returns s truncated to at most n runes.
// It appends an ellipsis "…" when truncated.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	// Single-pass implementation:
	//  - remember the byte index after the n-th rune
	//  - if there is an (n+1)-th rune, truncate + ellipsis
	count := 0
	cut := 0
	for i, r := range s {
		count++
		if count == n {
			cut = i + utf8.RuneLen(r)
			continue
		}
		if count > n {
			if cut <= 0 {
				cut = i
			}
			return s[:cut] + "…"
		}
	}
	return s
}

// fitRunes truncates s so the result, ellipsis included, never exceeds limit runes.
func fitRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return TruncRunes(s, limit-1)
}

// PollQuestion truncates s to the sendPoll question limit.
func PollQuestion(s string) string { return fitRunes(s, MaxPollQuestionLen) }

// PollOption truncates s to the sendPoll option limit.
func PollOption(s string) string { return fitRunes(s, MaxPollOptionLen) }

// PollExplanation truncates s to the sendPoll explanation limit.
func PollExplanation(s string) string { return fitRunes(s, MaxPollExplanationLen) }
