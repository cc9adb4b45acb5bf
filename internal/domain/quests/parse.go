package quests

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"
)

var questAliases = map[string]QuestType{
	"login":   DailyLogin,
	"flip":    DailyFlip,
	"flips":   WeeklyFlips,
	"weekly":  WeeklyFlips,
	"streak":  MonthlyStreak,
	"monthly": MonthlyStreak,
}

// ParseQuestType resolves user input to a quest type. It accepts the
// contract index, the canonical name, a few aliases, and falls back to
// fuzzy matching against canonical names.
func ParseQuestType(s string) (QuestType, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	if in == "" {
		return 0, fmt.Errorf("empty quest name")
	}
	if n, err := strconv.Atoi(in); err == nil {
		if n >= 0 && QuestType(n).Valid() {
			return QuestType(n), nil
		}
		return 0, fmt.Errorf("unknown quest index %d", n)
	}
	in = strings.NewReplacer("-", "_", " ", "_").Replace(in)
	for _, q := range All {
		if q.String() == in {
			return q, nil
		}
	}
	if q, ok := questAliases[in]; ok {
		return q, nil
	}

	names := make([]string, len(All))
	for i, q := range All {
		names[i] = q.String()
	}
	matches := fuzzy.Find(in, names)
	if len(matches) == 0 {
		return 0, fmt.Errorf("unknown quest %q", s)
	}
	return All[matches[0].Index], nil
}
