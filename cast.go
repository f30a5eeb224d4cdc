package main

import (
	"errors"
	"fmt"
	"strings"
)

// Character is a member of the cast. Exactly one character is the player.
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Personality string `json:"-"`
	SpeakStyle  string `json:"-"`
	Color       string `json:"color"`
	IsPlayer    bool   `json:"is_player"`
}

// Registry is the read-only cast lookup for one session.
type Registry struct {
	order []Character
	byID  map[string]int
	// player is the index of the player character in order
	player int
}

// NewRegistry validates the cast and keeps it in insertion order.
func NewRegistry(cast []Character) (*Registry, error) {
	r := &Registry{
		order:  make([]Character, 0, len(cast)),
		byID:   make(map[string]int, len(cast)),
		player: -1,
	}
	for _, c := range cast {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			return nil, errors.New("character id is required")
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate character id %q", c.ID)
		}
		if c.IsPlayer {
			if r.player >= 0 {
				return nil, fmt.Errorf("second player character %q", c.ID)
			}
			r.player = len(r.order)
		}
		if c.Name == "" {
			c.Name = c.ID
		}
		r.byID[c.ID] = len(r.order)
		r.order = append(r.order, c)
	}
	if r.player < 0 {
		return nil, errors.New("cast has no player character")
	}
	return r, nil
}

func (r *Registry) Get(id string) (Character, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Character{}, false
	}
	return r.order[i], true
}

func (r *Registry) All() []Character {
	out := make([]Character, len(r.order))
	copy(out, r.order)
	return out
}

// NonPlayerCast returns every character except the player, in cast order.
func (r *Registry) NonPlayerCast() []Character {
	out := make([]Character, 0, len(r.order)-1)
	for _, c := range r.order {
		if !c.IsPlayer {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) Player() Character {
	return r.order[r.player]
}

func (r *Registry) IsPlayer(id string) bool {
	return r.order[r.player].ID == id
}

// Name returns the display name, or the id itself for unknown characters.
func (r *Registry) Name(id string) string {
	if c, ok := r.Get(id); ok {
		return c.Name
	}
	return id
}
