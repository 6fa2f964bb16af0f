package authguard

import (
	"encoding/json"

	"github.com/cloudgroundcontrol/livekit-moderation/pkg/session"
	"github.com/livekit/protocol/auth"
)

// DefaultSentinelClaim is the claim value that confers eligibility for the
// elevated role when no override is configured.
const DefaultSentinelClaim = "room-owner"

// metadataClaims is the JSON shape carried in a participant's metadata and
// in the access token's metadata grant. The claim travels with the
// connection and is immutable for its lifetime.
type metadataClaims struct {
	ModerationClaim string `json:"moderation_claim"`
	RequestedRole   string `json:"requested_role"`
}

// ClaimFromMetadata extracts the moderation claim from participant
// metadata. An empty or unparseable metadata blob is the anonymous case,
// not an error.
func ClaimFromMetadata(metadata string) (string, bool) {
	if metadata == "" {
		return "", false
	}
	var mc metadataClaims
	if err := json.Unmarshal([]byte(metadata), &mc); err != nil {
		return "", false
	}
	if mc.ModerationClaim == "" {
		return "", false
	}
	return mc.ModerationClaim, true
}

// RequestedRoleFromMetadata extracts the role a join asked for, if any.
// The authguard pipeline decides whether the request is honoured.
func RequestedRoleFromMetadata(metadata string) session.Role {
	if metadata == "" {
		return ""
	}
	var mc metadataClaims
	if err := json.Unmarshal([]byte(metadata), &mc); err != nil {
		return ""
	}
	switch session.Role(mc.RequestedRole) {
	case session.RoleModerator:
		return session.RoleModerator
	case session.RoleNone:
		return session.RoleNone
	}
	return ""
}

// TokenClaimResolver resolves the moderation claim from a LiveKit access
// token, verifying the token signature first. Used for request paths that
// arrive with a bearer token rather than a connected participant.
type TokenClaimResolver struct {
	apiKey    string
	apiSecret string
}

func NewTokenClaimResolver(apiKey string, apiSecret string) *TokenClaimResolver {
	return &TokenClaimResolver{apiKey: apiKey, apiSecret: apiSecret}
}

// Resolve verifies the token and extracts the claim from its metadata
// grant. A missing or unverifiable token resolves to no claim.
func (r *TokenClaimResolver) Resolve(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	verifier, err := auth.ParseAPIToken(token)
	if err != nil {
		return "", false
	}
	if verifier.APIKey() != r.apiKey {
		return "", false
	}
	grants, err := verifier.Verify(r.apiSecret)
	if err != nil {
		return "", false
	}
	return ClaimFromMetadata(grants.Metadata)
}

// EncodeClaimMetadata builds the metadata blob carrying a claim, for token
// issuance and participant updates.
func EncodeClaimMetadata(claim string) string {
	body, err := json.Marshal(metadataClaims{ModerationClaim: claim})
	if err != nil {
		return ""
	}
	return string(body)
}
