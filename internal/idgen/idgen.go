// Package idgen allocates feed identifiers. Ids are Sonyflake values:
// time-ordered, unique across restarts, and safe to expose in URLs.
package idgen

import (
	"errors"

	"github.com/sony/sonyflake"
)

type Generator interface {
	NextID() (int64, error)
}

type sonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

func New() (Generator, error) {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{})
	if sf == nil {
		return nil, errors.New("sonyflake initialization failed")
	}
	return &sonyflakeGenerator{sf: sf}, nil
}

func (g *sonyflakeGenerator) NextID() (int64, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return 0, err
	}
	return int64(id), nil
}
