package changes

import "artdep/internal/config"

// OtherCategory collects files matching none of the category rules.
const OtherCategory = "other"

// Categorize assigns each file in the set to exactly one category.
// Rules are evaluated in order and the first rule whose pattern set
// matches wins, so a file under both a broad and a narrow glob lands
// deterministically in the earlier rule's bucket. Files matching no
// rule go to "other". Only non-empty buckets appear in the result.
func (cs *ChangeSet) Categorize(rules []config.Rule) map[string][]string {
	result := make(map[string][]string)

	for _, file := range cs.Files {
		category := OtherCategory
		for _, rule := range rules {
			if matchAny(rule.Patterns, file) {
				category = rule.Name
				break
			}
		}
		result[category] = append(result[category], file)
	}

	return result
}
