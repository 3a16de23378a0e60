package classifier

import (
	"regexp"
	"strings"

	"github.com/joescharf/civic/internal/models"
)

// Priority keywords, checked in order. The first High match wins before any
// Medium keyword is considered.
var (
	highPriorityKeywords = []string{
		"fire", "blast", "spark", "current", "death", "accident", "blood",
		"murder", "robbery", "gas leak", "live wire", "poison", "emergency",
		"collapse", "drowning", "snatching", "attack",
	}
	mediumPriorityKeywords = []string{
		"garbage", "smell", "leak", "jam", "broken", "dirty", "mosquito",
		"dengue", "stagnant", "theft", "traffic", "sewage", "choked",
	}
)

// departmentKeywords is evaluated in models.Departments order.
var departmentKeywords = map[models.Department][]string{
	models.DepartmentElectricity: {"light", "pole", "wire", "current", "power", "meter", "voltage", "transformer"},
	models.DepartmentWater:       {"water", "pipe", "tap", "leakage", "supply", "tank", "drain"},
	models.DepartmentPolice:      {"theft", "robbery", "fight", "crime", "traffic", "signal", "noise", "stolen"},
	models.DepartmentPWD:         {"road", "pothole", "bridge", "street", "divider", "repair"},
	models.DepartmentHealth:      {"mosquito", "dengue", "malaria", "food", "hospital", "dog", "medicine"},
	models.DepartmentFire:        {"fire", "smoke", "blast", "cylinder", "gas"},
	models.DepartmentMunicipal:   {"garbage", "dustbin", "cleaning", "tree", "park", "encroachment", "toilet"},
}

// keyword is a literal phrase compiled for whole-word matching.
type keyword struct {
	word string
	re   *regexp.Regexp
}

// keywordList is an ordered list of keywords; Match returns the first hit.
type keywordList []keyword

func compileKeywords(words []string) keywordList {
	list := make(keywordList, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		list = append(list, keyword{
			word: w,
			re:   regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`),
		})
	}
	return list
}

// Match returns the first keyword that occurs in lower as a whole word.
// lower must already be lower-cased.
func (l keywordList) Match(lower string) (string, bool) {
	for _, k := range l {
		if k.re.MatchString(lower) {
			return k.word, true
		}
	}
	return "", false
}

// departmentRule pairs a department with its compiled keywords.
type departmentRule struct {
	department models.Department
	keywords   keywordList
}

func compileDepartmentRules(table map[models.Department][]string) []departmentRule {
	rules := make([]departmentRule, 0, len(table))
	for _, d := range models.Departments {
		words, ok := table[d]
		if !ok {
			continue
		}
		rules = append(rules, departmentRule{department: d, keywords: compileKeywords(words)})
	}
	return rules
}

// KeywordTable returns a copy of the department keyword table.
func KeywordTable() map[models.Department][]string {
	out := make(map[models.Department][]string, len(departmentKeywords))
	for d, words := range departmentKeywords {
		out[d] = append([]string(nil), words...)
	}
	return out
}
