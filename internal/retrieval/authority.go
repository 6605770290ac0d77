package retrieval

import (
	"strings"

	"github.com/ppiankov/beacon/internal/model"
)

// sourceTypeTiers maps ingestion source types to authority tiers
var sourceTypeTiers = map[string]model.AuthorityTier{
	"determination":            model.TierCode,
	"building_code":            9,
	"rule":                     9,
	"zoning":                   9,
	"multiple_dwelling_law":    9,
	"technical_bulletin":       model.TierBulletin,
	"housing_maintenance_code": model.TierBulletin,
	"historical_determination": model.TierBulletin,
	"policy_memo":              model.TierPolicy,
	"service_notice":           model.TierNotice,
	"procedure":                model.TierProcedure,
	"process":                  model.TierProcedure,
	"reference":                model.TierReference,
	"checklist":                model.TierReference,
	"historical":               model.TierHistorical,
	"internal_notes":           model.TierHistorical,
	"communication":            model.TierHistorical,
}

// AuthorityFor classifies a source type into an authority tier.
// Unknown types get the lowest tier.
func AuthorityFor(sourceType string) model.AuthorityTier {
	key := strings.ToLower(strings.TrimSpace(sourceType))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if tier, ok := sourceTypeTiers[key]; ok {
		return tier
	}
	return model.MinAuthority
}

// ChunkAuthority returns the chunk's explicit tier, or derives one from its source type
func ChunkAuthority(c model.DocumentChunk) model.AuthorityTier {
	if c.Authority > 0 {
		return c.Authority.Clamp()
	}
	return AuthorityFor(c.SourceType)
}
