package service

import (
	"sort"
	"strings"
)

// RenderTemplate replaces each {key} with its value in a single pass.
// Placeholders without a value are left as written.
func RenderTemplate(template string, data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(data)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", data[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// RenderMessage fills the outbound SMS placeholders.
func RenderMessage(template, firstName, link string) string {
	if strings.TrimSpace(firstName) == "" {
		firstName = "there"
	}
	return RenderTemplate(template, map[string]string{
		"first": firstName,
		"link":  link,
	})
}
