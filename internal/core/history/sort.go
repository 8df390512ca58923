package history

import (
	"sort"
	"strconv"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// rowComparator orders the parameters of one group before the reversal:
// level descending, then name descending, then effective date ascending.
// Levels compare as decimal strings, so level 2 sorts before level 10.
type rowComparator struct {
	collator *collate.Collator
}

func newRowComparator() *rowComparator {
	return &rowComparator{collator: collate.New(language.English)}
}

func (c *rowComparator) compare(a, b domain.Parameter) int {
	if r := c.collator.CompareString(strconv.Itoa(b.Level), strconv.Itoa(a.Level)); r != 0 {
		return r
	}
	if r := c.collator.CompareString(b.Name, a.Name); r != 0 {
		return r
	}
	return c.collator.CompareString(a.EffectiveDate, b.EffectiveDate)
}

func (c *rowComparator) sort(parameters []domain.Parameter) {
	sort.SliceStable(parameters, func(i, j int) bool {
		return c.compare(parameters[i], parameters[j]) < 0
	})
}
