package cli

import (
	"fmt"
	"strings"
)

const searchTemplate = `[:find (pull ?p [:db/id :block/uuid :block/name :block/title :block/journal-day]) :where [?p :block/name ?name] [?p :block/title ?title] (or [(clojure.string/includes? ?name "%s")] [(clojure.string/includes? ?title "%s")])]`

// SearchQuery builds a datalog query matching pages whose lowercase name or
// original-case title contains term. Double quotes in term are escaped.
func SearchQuery(term string) string {
	escaped := strings.ReplaceAll(term, `"`, `\"`)
	return fmt.Sprintf(searchTemplate, strings.ToLower(escaped), escaped)
}
