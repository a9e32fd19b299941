package spider

import (
	"regexp"
	"strconv"
)

var urlRangeRe = regexp.MustCompile(`\[(\d+)-(\d+)\]`)

// ExpandURLRange expands a single bracketed numeric range "[a-b]" inside a
// URL template into one URL per integer, ordered from a to b inclusive.
// Templates without exactly one well-formed range (start > end, non-numeric
// bounds, several brackets) are returned unchanged as the sole URL.
func ExpandURLRange(template string) []string {
	locs := urlRangeRe.FindAllStringSubmatchIndex(template, -1)
	if len(locs) != 1 {
		return []string{template}
	}
	loc := locs[0]
	start, err := strconv.Atoi(template[loc[2]:loc[3]])
	if err != nil {
		return []string{template}
	}
	end, err := strconv.Atoi(template[loc[4]:loc[5]])
	if err != nil || start > end {
		return []string{template}
	}
	urls := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		urls = append(urls, template[:loc[0]]+strconv.Itoa(i)+template[loc[1]:])
	}
	return urls
}
