package moderation

import (
	"time"

	"github.com/livekit/protocol/auth"
)

type authProvider struct {
	APIKey    string
	APISecret string
}

func createAuthProvider(key string, secret string) *authProvider {
	return &authProvider{key, secret}
}

// buildObserverToken issues a token for the hidden moderation bot: it
// subscribes to everything, publishes nothing, and stays invisible to the
// room roster.
func (p *authProvider) buildObserverToken(room string, identity string) (string, error) {
	at := auth.NewAccessToken(p.APIKey, p.APISecret)
	f := false
	t := true
	grant := &auth.VideoGrant{
		Room:           room,
		RoomJoin:       true,
		RoomAdmin:      true,
		CanPublish:     &f,
		CanPublishData: &f,
		CanSubscribe:   &t,
		Hidden:         true,
	}
	return at.
		AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(time.Hour).
		ToJWT()
}
