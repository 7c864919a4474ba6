// internal/cache/cache.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client enveloppe le client Redis avec des opérations typées.
// Toute opération est faillible et non fatale : les appelants
// journalisent et continuent, le repository reste la source de vérité.
type Client struct {
	rdb *redis.Client
}

// New crée un client cache depuis une URL Redis
func New(url, token string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if token != "" {
		opts.Password = token
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// NewFromClient enveloppe un client Redis existant
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Ping vérifie la connexion
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close ferme la connexion
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Get récupère une valeur string; retourne "" si la clé n'existe pas
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// Set écrit une valeur avec une expiration optionnelle (0 = pas de TTL)
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete supprime des clés
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// Exists vérifie l'existence d'une clé
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// HGet récupère un champ de hash; retourne "" si absent
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	val, err := c.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// HSet écrit des champs de hash
func (c *Client) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return c.rdb.HSet(ctx, key, args...).Err()
}

// HGetAll récupère tous les champs d'un hash
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, key).Result()
}

// SAdd ajoute des membres à un set
func (c *Client) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.rdb.SAdd(ctx, key, args...).Err()
}

// SRem retire des membres d'un set
func (c *Client) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.rdb.SRem(ctx, key, args...).Err()
}

// SIsMember vérifie l'appartenance à un set
func (c *Client) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return c.rdb.SIsMember(ctx, key, member).Result()
}

// SCard retourne la cardinalité d'un set
func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.SCard(ctx, key).Result()
}

// Incr incrémente atomiquement un compteur
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

// Decr décrémente atomiquement un compteur
func (c *Client) Decr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Decr(ctx, key).Result()
}

// Clés du contrat cache

// PresenceKey retourne la clé du compteur de connexions d'un utilisateur
func PresenceKey(userID string) string {
	return fmt.Sprintf("ws:user:%s:conn_count", userID)
}

// RoomMetaKey retourne la clé du hash meta d'une salle
func RoomMetaKey(roomID string) string {
	return fmt.Sprintf("room:%s:meta", roomID)
}

// RoomSeatsKey retourne la clé du hash sièges d'une salle
func RoomSeatsKey(roomID string) string {
	return fmt.Sprintf("room:%s:seats", roomID)
}
