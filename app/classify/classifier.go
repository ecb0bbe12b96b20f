package classify

import (
	"strings"

	"github.com/lysyi3m/eth-comb/app/database"
)

// DefaultCategory is returned for source ids no rule matches.
const DefaultCategory = database.CategoryAnnouncement

type Rule struct {
	Pattern  string
	Exact    bool
	Category database.Category
}

// DefaultRules maps known source ids to categories. Prefix rules overlap on
// purpose: github.com/ethereum/EIPs beats github.com/ethereum.
var DefaultRules = []Rule{
	{Pattern: "ethresear.ch", Category: database.CategoryResearch},
	{Pattern: "eprint.iacr.org", Category: database.CategoryResearch},
	{Pattern: "notes.ethereum.org", Category: database.CategoryResearch},
	{Pattern: "ethereum-magicians.org", Category: database.CategoryEIPERC},
	{Pattern: "github.com/ethereum/EIPs", Category: database.CategoryEIPERC},
	{Pattern: "github.com/ethereum/ERCs", Category: database.CategoryEIPERC},
	{Pattern: "eips.ethereum.org", Category: database.CategoryEIPERC},
	{Pattern: "github.com/ethereum/pm", Category: database.CategoryProtocolCalls},
	{Pattern: "github.com/ethereum/execution-specs", Category: database.CategoryUpgrade},
	{Pattern: "github.com/ethereum/consensus-specs", Category: database.CategoryUpgrade},
	{Pattern: "github.com/ethereum/go-ethereum", Category: database.CategoryUpgrade},
	{Pattern: "github.com/sigp/lighthouse", Category: database.CategoryUpgrade},
	{Pattern: "github.com/prysmaticlabs/prysm", Category: database.CategoryUpgrade},
	{Pattern: "github.com/NethermindEth/nethermind", Category: database.CategoryUpgrade},
	{Pattern: "github.com/ethereum", Category: database.CategoryAnnouncement},
	{Pattern: "blog.ethereum.org", Category: database.CategoryAnnouncement},
	{Pattern: "snapshot.org", Category: database.CategoryGovernance},
	{Pattern: "snapshot", Category: database.CategoryGovernance},
	{Pattern: "gov.", Category: database.CategoryGovernance},
	{Pattern: "forum.arbitrum.foundation", Category: database.CategoryGovernance},
	{Pattern: "rekt.news", Category: database.CategorySecurity},
	{Pattern: "github.com/ethereum/solidity/security", Category: database.CategorySecurity},
	{Pattern: "l2beat.com", Category: database.CategoryMetrics},
	{Pattern: "ultrasound.money", Category: database.CategoryMetrics},
	{Pattern: "dune.com", Category: database.CategoryMetrics},
}

type Classifier struct {
	rules []Rule
}

func NewClassifier() *Classifier {
	return &Classifier{rules: DefaultRules}
}

// WithRules returns a classifier consulting extra rules after the table ones.
// Rules with an invalid category are ignored.
func (c *Classifier) WithRules(extra ...Rule) *Classifier {
	rules := make([]Rule, 0, len(c.rules)+len(extra))
	rules = append(rules, c.rules...)
	for _, r := range extra {
		if r.Category.Valid() && r.Pattern != "" {
			rules = append(rules, r)
		}
	}
	return &Classifier{rules: rules}
}

// RegistryRules turns registry default categories into exact rules on the source id.
func RegistryRules(sources []database.Source) []Rule {
	rules := make([]Rule, 0, len(sources))
	for _, s := range sources {
		if s.DefaultCategory == "" {
			continue
		}
		rules = append(rules, Rule{Pattern: s.ID, Exact: true, Category: s.DefaultCategory})
	}
	return rules
}

// Classify maps a source id to a category. Exact matches win over prefixes,
// the longest prefix wins among prefixes, and earlier rules win ties.
func (c *Classifier) Classify(sourceID string) database.Category {
	id := strings.ToLower(strings.TrimSpace(sourceID))
	if id == "" {
		return DefaultCategory
	}

	var (
		best    *Rule
		bestLen = -1
	)
	for i := range c.rules {
		r := &c.rules[i]
		pattern := strings.ToLower(r.Pattern)

		if r.Exact {
			if id == pattern {
				return r.Category
			}
			continue
		}

		if strings.HasPrefix(id, pattern) && len(pattern) > bestLen {
			best = r
			bestLen = len(pattern)
		}
	}

	if best == nil {
		return DefaultCategory
	}
	return best.Category
}

// Classify uses the default rule table.
func Classify(sourceID string) database.Category {
	return defaultClassifier.Classify(sourceID)
}

var defaultClassifier = NewClassifier()
