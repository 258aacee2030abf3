package clusterview

import (
	"sort"
	"strconv"
	"strings"
)

// prefixOf finds the first underscore in token and parses the substring
// before it as a signed decimal. -1 on a missing underscore or a parse
// failure, so malformed/missing-prefix tokens collapse together and sort
// last.
func prefixOf(token string) int64 {
	idx := strings.IndexByte(token, '_')
	if idx < 0 {
		return -1
	}
	n, err := strconv.ParseInt(token[:idx], 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// lessPlain is the plain-mode comparator: lexicographic compare of the
// raw token.
func lessPlain(a, b string) bool {
	return a < b
}

// lessInvertedPrefix is the inverted-prefix comparator: when prefixes
// differ, the larger prefix sorts first; ties (including the -1/-1
// malformed-token tie) fall back to lexicographic order on the full
// token, ascending.
func lessInvertedPrefix(a, b string) bool {
	pa, pb := prefixOf(a), prefixOf(b)
	if pa != pb {
		return pa > pb
	}
	return a < b
}

// sortMembers sorts infos in place by leader-election token under the
// configured comparator. The leader is infos[0] after sorting.
func sortMembers(infos []InstanceInfo, invertPrefixOrder bool) {
	less := lessPlain
	if invertPrefixOrder {
		less = lessInvertedPrefix
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return less(infos[i].LeaderElectionToken, infos[j].LeaderElectionToken)
	})
}
