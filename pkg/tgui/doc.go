// Package tgui contains small helpers for composing Telegram messages:
// HTML escaping/markup for ParseMode="HTML" and rune-safe truncation for
// the hard field limits of the Bot API poll object.
package tgui
