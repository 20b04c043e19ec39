package repositories

import (
	"fmt"
	"slices"
	"strings"

	"github.com/DevCodeRift/boundless-saga/internal/models"
)

// matchableColumns whitelists the account columns a clause may reference and the
// operators each one supports.
var matchableColumns = map[string][]models.MatchOp{
	models.ColumnDiscordID:          {models.OpEquals},
	models.ColumnEmail:              {models.OpEquals},
	models.ColumnDeviceFingerprint:  {models.OpEquals},
	models.ColumnIPAddresses:        {models.OpContains},
	models.ColumnBrowserFingerprint: {models.OpJSONEquals},
}

// buildMatchWhere renders an AnyOf filter into a parenthesised OR expression with
// positional arguments. An empty filter yields an empty expression.
func buildMatchWhere(filter models.AnyOf) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	parts := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))

	for _, clause := range filter {
		ops, ok := matchableColumns[clause.Column]
		if !ok {
			return "", nil, fmt.Errorf("unsupported match column %q", clause.Column)
		}
		if !slices.Contains(ops, clause.Op) {
			return "", nil, fmt.Errorf("unsupported operator %q for column %q", clause.Op, clause.Column)
		}

		args = append(args, clause.Value)
		placeholder := fmt.Sprintf("$%d", len(args))

		switch clause.Op {
		case models.OpEquals:
			parts = append(parts, clause.Column+" = "+placeholder)
		case models.OpContains:
			parts = append(parts, placeholder+" = ANY("+clause.Column+")")
		case models.OpJSONEquals:
			parts = append(parts, clause.Column+" = "+placeholder+"::jsonb")
		}
	}

	return "(" + strings.Join(parts, " OR ") + ")", args, nil
}
