// internal/cache/presence.go
package cache

import (
	"context"

	"go.uber.org/zap"
)

// Presence suit le nombre de connexions par utilisateur dans le cache.
// Les erreurs cache sont journalisées, jamais remontées.
type Presence struct {
	cache *Client
	log   *zap.Logger
}

// NewPresence crée un tracker de présence
func NewPresence(cache *Client, log *zap.Logger) *Presence {
	return &Presence{cache: cache, log: log}
}

// Connect incrémente le compteur de connexions d'un utilisateur
func (p *Presence) Connect(ctx context.Context, userID string) {
	if p.cache == nil {
		return
	}
	if _, err := p.cache.Incr(ctx, PresenceKey(userID)); err != nil {
		p.log.Warn("presence incr failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Disconnect décrémente le compteur; la clé est supprimée à zéro
func (p *Presence) Disconnect(ctx context.Context, userID string) {
	if p.cache == nil {
		return
	}
	key := PresenceKey(userID)
	n, err := p.cache.Decr(ctx, key)
	if err != nil {
		p.log.Warn("presence decr failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if n <= 0 {
		if err := p.cache.Delete(ctx, key); err != nil {
			p.log.Warn("presence key delete failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// IsOnline vérifie si un utilisateur a au moins une connexion active
func (p *Presence) IsOnline(ctx context.Context, userID string) bool {
	if p.cache == nil {
		return false
	}
	val, err := p.cache.Get(ctx, PresenceKey(userID))
	if err != nil {
		p.log.Warn("presence lookup failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return val != "" && val != "0"
}
