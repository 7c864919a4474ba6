// internal/auth/validator.go
package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Erreurs d'authentification
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

const (
	jwksPath        = "/auth/v1/.well-known/jwks.json"
	issuerPath      = "/auth/v1"
	expectedAud     = "authenticated"
	keyRefreshEvery = 10 * time.Minute
)

// Claims contient le résultat d'une validation réussie
type Claims struct {
	UserID string
	Expiry time.Time
}

// Validator vérifie les jetons Supabase contre le JWKS du projet.
// Sûr pour un usage concurrent.
type Validator struct {
	baseURL string
	secret  []byte // secret HS256 optionnel (clé legacy)
	client  *http.Client

	mu        sync.RWMutex
	keys      map[string]interface{} // kid -> clé publique
	fetchedAt time.Time
}

// NewValidator crée un validateur de jetons
func NewValidator(supabaseURL, anonKey string) *Validator {
	return &Validator{
		baseURL: supabaseURL,
		secret:  []byte(anonKey),
		client:  &http.Client{Timeout: 10 * time.Second},
		keys:    make(map[string]interface{}),
	}
}

// Validate vérifie un jeton et retourne le sujet et son expiration
func (v *Validator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256", "ES256", "HS256"}),
		jwt.WithAudience(expectedAud),
		jwt.WithIssuer(v.baseURL+issuerPath),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); ok {
			if len(v.secret) == 0 {
				return nil, fmt.Errorf("no shared secret configured")
			}
			return v.secret, nil
		}
		kid, _ := t.Header["kid"].(string)
		return v.keyFor(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrTokenInvalid)
	}

	return &Claims{UserID: sub, Expiry: exp.Time}, nil
}

// keyFor retourne la clé publique pour un kid, rafraîchissant le cache si besoin
func (v *Validator) keyFor(ctx context.Context, kid string) (interface{}, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) < keyRefreshEvery
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		// Une clé en cache reste utilisable si le refresh échoue
		if ok {
			return key, nil
		}
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

// jwk représente une clé publiée dans le JWKS
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// refreshKeys récupère le JWKS et remplace le cache de clés
func (v *Validator) refreshKeys(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	// Un autre appelant peut avoir rafraîchi pendant l'attente du verrou
	if time.Since(v.fetchedAt) < time.Minute && len(v.keys) > 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+jwksPath, nil)
	if err != nil {
		return fmt.Errorf("failed to build jwks request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode jwks: %w", err)
	}

	keys := make(map[string]interface{}, len(doc.Keys))
	for _, k := range doc.Keys {
		pub, err := k.publicKey()
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("jwks contains no usable keys")
	}

	v.keys = keys
	v.fetchedAt = time.Now()
	return nil
}

// publicKey construit la clé publique Go depuis la représentation JWK
func (k *jwk) publicKey() (interface{}, error) {
	switch k.Kty {
	case "RSA":
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, fmt.Errorf("bad modulus: %w", err)
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, fmt.Errorf("bad exponent: %w", err)
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(new(big.Int).SetBytes(e).Int64()),
		}, nil
	case "EC":
		if k.Crv != "P-256" {
			return nil, fmt.Errorf("unsupported curve %q", k.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			return nil, fmt.Errorf("bad x coordinate: %w", err)
		}
		y, err := base64.RawURLEncoding.DecodeString(k.Y)
		if err != nil {
			return nil, fmt.Errorf("bad y coordinate: %w", err)
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
}
