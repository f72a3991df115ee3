package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/iptdesk/internal/models"
)

var ErrBadItemLine = errors.New("bad item line")

// ParseItems turns "Laptop=2" lines into request items. A line without
// "=" asks for one unit.
func ParseItems(lines []string) ([]models.RequestItem, error) {
	items := make([]models.RequestItem, 0, len(lines))
	for i, line := range lines {
		name, qty, found := strings.Cut(line, "=")
		item := models.RequestItem{Name: strings.TrimSpace(name), Quantity: 1}
		if found {
			n, err := strconv.Atoi(strings.TrimSpace(qty))
			if err != nil {
				return nil, fmt.Errorf("%w %d %q: quantity must be a number", ErrBadItemLine, i+1, line)
			}
			item.Quantity = n
		}
		items = append(items, item)
	}
	return items, nil
}
