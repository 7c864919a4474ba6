// internal/server/game/state.go
package game

import (
	"fmt"
	"sort"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
)

// TokenState représente l'étape d'un pion dans sa progression
type TokenState string

const (
	Hell        TokenState = "HELL"
	Road        TokenState = "ROAD"
	HomeStretch TokenState = "HOMESTRETCH"
	Heaven      TokenState = "HEAVEN"
)

// Phase représente la phase du tour courant
type Phase string

const (
	PhaseCreated               Phase = "created"
	PhaseAwaitingRoll          Phase = "awaiting_roll"
	PhaseAwaitingMove          Phase = "awaiting_move"
	PhaseAwaitingCaptureChoice Phase = "awaiting_capture_choice"
	PhaseFinished              Phase = "finished"
)

// Token représente un pion.
// Position vaut 0..51 sur la route, 1..5 dans la zone maison (atteindre
// la case 6 fait passer en HEAVEN), et n'a pas de sens en HELL ou HEAVEN.
type Token struct {
	ID          string     `json:"id"`
	Owner       int        `json:"owner"` // index de siège
	State       TokenState `json:"state"`
	Position    int        `json:"position"`
	StackedWith []string   `json:"stacked_with,omitempty"` // co-membres de la pile, hors soi-même
}

// Player représente un joueur dans la partie
type Player struct {
	Seat     int      `json:"seat"`
	UserID   string   `json:"user_id"`
	Tokens   []*Token `json:"tokens"`
	Rank     int      `json:"rank,omitempty"` // 1 = premier fini
}

// Finished indique si les quatre pions du joueur sont arrivés
func (p *Player) Finished() bool {
	for _, t := range p.Tokens {
		if t.State != Heaven {
			return false
		}
	}
	return true
}

// Ruleset porte les constantes paramétrables d'une partie
type Ruleset struct {
	RoadLength       int   `json:"road_length"`
	HomeStretchLen   int   `json:"home_stretch_len"`
	SafeSquares      []int `json:"safe_squares"`
	StartSquares     []int `json:"start_squares"` // par index de siège
	CaptureChoice    bool  `json:"capture_choice"`
	PlayToCompletion bool  `json:"play_to_completion"`
}

// DefaultRuleset retourne le ruleset classique
func DefaultRuleset() Ruleset {
	starts := make([]int, constants.MaxPlayers)
	copy(starts, constants.StartingPositions[:])
	safe := make([]int, len(constants.SafePositions))
	copy(safe, constants.SafePositions)
	return Ruleset{
		RoadLength:     constants.RoadLength,
		HomeStretchLen: constants.HomeStretchLen,
		SafeSquares:    safe,
		StartSquares:   starts,
	}
}

// entrySquare retourne la case d'entrée maison d'un siège
func (r Ruleset) entrySquare(seat int) int {
	return (r.StartSquares[seat] + r.RoadLength - 1) % r.RoadLength
}

// isSafe vérifie si une case de la route est sécurisée
func (r Ruleset) isSafe(pos int) bool {
	return constants.IsSafe(pos, r.SafeSquares)
}

// PendingCapture retient une capture en attente de choix
type PendingCapture struct {
	Square   int              `json:"square"`
	Groups   map[int][]string `json:"groups"` // siège adverse -> ids de pions
}

// State est l'état complet d'une partie. Il est inerte : toutes les
// transitions passent par ProcessAction.
type State struct {
	Ruleset          Ruleset         `json:"ruleset"`
	Players          []*Player       `json:"players"`
	Current          int             `json:"current"` // index dans Players
	Phase            Phase           `json:"phase"`
	TurnRolls        []int           `json:"turn_rolls"`
	PendingDice      []int           `json:"pending_dice"`
	ConsecutiveSixes int             `json:"consecutive_sixes"`
	Pending          *PendingCapture `json:"pending_capture,omitempty"`
	NextRank         int             `json:"next_rank"`
}

// SeatAssignment lie un siège à un utilisateur au démarrage
type SeatAssignment struct {
	Seat   int
	UserID string
}

// NewState crée l'état initial d'une partie. L'ordre de jeu suit
// l'ordre des sièges. Tous les pions commencent en HELL.
func NewState(seats []SeatAssignment, ruleset Ruleset) *State {
	players := make([]*Player, 0, len(seats))
	for _, sa := range seats {
		tokens := make([]*Token, constants.TokensPerPlayer)
		for i := range tokens {
			tokens[i] = &Token{
				ID:    fmt.Sprintf("s%dt%d", sa.Seat, i),
				Owner: sa.Seat,
				State: Hell,
			}
		}
		players = append(players, &Player{Seat: sa.Seat, UserID: sa.UserID, Tokens: tokens})
	}
	return &State{
		Ruleset:  ruleset,
		Players:  players,
		Phase:    PhaseCreated,
		NextRank: 1,
	}
}

// Clone retourne une copie profonde de l'état
func (s *State) Clone() *State {
	c := *s
	c.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		np := *p
		np.Tokens = make([]*Token, len(p.Tokens))
		for j, t := range p.Tokens {
			nt := *t
			nt.StackedWith = append([]string(nil), t.StackedWith...)
			np.Tokens[j] = &nt
		}
		c.Players[i] = &np
	}
	c.TurnRolls = append([]int(nil), s.TurnRolls...)
	c.PendingDice = append([]int(nil), s.PendingDice...)
	if s.Pending != nil {
		p := *s.Pending
		p.Groups = make(map[int][]string, len(s.Pending.Groups))
		for k, v := range s.Pending.Groups {
			p.Groups[k] = append([]string(nil), v...)
		}
		c.Pending = &p
	}
	return &c
}

// CurrentPlayer retourne le joueur dont c'est le tour
func (s *State) CurrentPlayer() *Player {
	return s.Players[s.Current]
}

// playerBySeat retrouve un joueur par son siège
func (s *State) playerBySeat(seat int) *Player {
	for _, p := range s.Players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

// token retrouve un pion par son id
func (s *State) token(id string) *Token {
	for _, p := range s.Players {
		for _, t := range p.Tokens {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

// group retourne la pile complète contenant un pion (lui inclus), triée par id
func (s *State) group(t *Token) []*Token {
	tokens := []*Token{t}
	for _, id := range t.StackedWith {
		if other := s.token(id); other != nil {
			tokens = append(tokens, other)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ID < tokens[j].ID })
	return tokens
}

// tokensAt retourne les pions présents sur une case de la route
func (s *State) tokensAt(pos int) []*Token {
	var out []*Token
	for _, p := range s.Players {
		for _, t := range p.Tokens {
			if t.State == Road && t.Position == pos {
				out = append(out, t)
			}
		}
	}
	return out
}

// relative retourne la distance parcourue depuis la case de départ
func (s *State) relative(t *Token) int {
	start := s.Ruleset.StartSquares[t.Owner]
	return (t.Position - start + s.Ruleset.RoadLength) % s.Ruleset.RoadLength
}

// MoveOption décrit un coup légal
type MoveOption struct {
	TokenIDs  []string   `json:"token_ids"`
	Die       int        `json:"die"`
	Effective int        `json:"effective"`
	ToState   TokenState `json:"to_state"`
	ToPos     int        `json:"to_pos"`
	Split     bool       `json:"split,omitempty"`
}

// EffectiveRoll retourne la distance effective d'une pile pour un dé brut
func EffectiveRoll(raw, height int) int {
	if height <= 0 {
		return 0
	}
	return raw / height
}

// LegalMoves énumère les coups légaux du joueur pour un dé donné.
// Les pions d'une pile étant interchangeables, une option est offerte
// par taille de sous-ensemble, du plus grand au plus petit.
func LegalMoves(s *State, seat int, die int) []MoveOption {
	p := s.playerBySeat(seat)
	if p == nil {
		return nil
	}

	var options []MoveOption
	seen := make(map[string]bool)

	for _, t := range p.Tokens {
		switch t.State {
		case Hell:
			// Quitter HELL exige un 6 brut, jamais divisé
			if die == constants.RollToLeaveHell {
				options = append(options, MoveOption{
					TokenIDs:  []string{t.ID},
					Die:       die,
					Effective: die,
					ToState:   Road,
					ToPos:     s.Ruleset.StartSquares[seat],
				})
			}
		case Road, HomeStretch:
			grp := s.group(t)
			key := grp[0].ID
			if seen[key] {
				continue
			}
			seen[key] = true
			for k := len(grp); k >= 1; k-- {
				eff := EffectiveRoll(die, k)
				if eff == 0 {
					continue
				}
				toState, toPos, ok := s.destination(t, eff)
				if !ok {
					continue
				}
				ids := make([]string, k)
				for i := 0; i < k; i++ {
					ids[i] = grp[i].ID
				}
				options = append(options, MoveOption{
					TokenIDs:  ids,
					Die:       die,
					Effective: eff,
					ToState:   toState,
					ToPos:     toPos,
					Split:     k < len(grp),
				})
			}
		case Heaven:
			// Gelé
		}
	}
	return options
}

// destination calcule l'arrivée d'un déplacement effectif.
// Un dépassement de la case 6 de la zone maison rend le coup illégal.
func (s *State) destination(t *Token, eff int) (TokenState, int, bool) {
	switch t.State {
	case Road:
		rel := s.relative(t)
		lastRel := s.Ruleset.RoadLength - 1
		if rel+eff > lastRel {
			home := rel + eff - lastRel
			if home > s.Ruleset.HomeStretchLen {
				return "", 0, false
			}
			if home == s.Ruleset.HomeStretchLen {
				return Heaven, 0, true
			}
			return HomeStretch, home, true
		}
		return Road, (t.Position + eff) % s.Ruleset.RoadLength, true
	case HomeStretch:
		home := t.Position + eff
		if home > s.Ruleset.HomeStretchLen {
			return "", 0, false
		}
		if home == s.Ruleset.HomeStretchLen {
			return Heaven, 0, true
		}
		return HomeStretch, home, true
	default:
		return "", 0, false
	}
}
