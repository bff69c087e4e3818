package idgen

import "fmt"

// Strategies accepted by New.
const (
	StrategyUUID   = "uuid"
	StrategyULID   = "ulid"
	StrategyKSUID  = "ksuid"
	StrategyNanoID = "nanoid"
	StrategyCUID2  = "cuid2"
)

// Generator produces identifiers for polls and chat messages.
type Generator interface {
	Generate() (string, error)
}

// New returns the generator for a strategy name.
func New(strategy string) (Generator, error) {
	switch strategy {
	case StrategyUUID:
		return NewUUIDGenerator(), nil
	case "", StrategyULID:
		return NewULIDGenerator(), nil
	case StrategyKSUID:
		return NewKSUIDGenerator(), nil
	case StrategyNanoID:
		return NewNanoIDGenerator(DefaultNanoIDSize, DefaultNanoIDAlphabet)
	case StrategyCUID2:
		return NewCUID2Generator(DefaultCUID2Length)
	default:
		return nil, fmt.Errorf("unknown id strategy: %s", strategy)
	}
}
