package engine

import "smc-engine/internal/structure"

// Direction is the side of a signal.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Signal is an admitted trade candidate. Once admitted the stop always sits
// on the losing side of the price: stop < price for buys, stop > price for
// sells, so risk is strictly positive.
type Signal struct {
	Time           int64               `json:"time"`
	BarIndex       int                 `json:"barIndex"`
	Price          float64             `json:"price"`
	Direction      Direction           `json:"direction"`
	Basis          string              `json:"basis"`
	Setup          SetupKind           `json:"setup"`
	Stop           float64             `json:"stop"`
	TP1            float64             `json:"tp1,omitempty"`
	TP2            float64             `json:"tp2,omitempty"`
	TP3            float64             `json:"tp3,omitempty"`
	TP4            float64             `json:"tp4,omitempty"`
	SizeMultiplier float64             `json:"sizeMultiplier"`
	Session        string              `json:"session"`
	Bias           structure.BiasLabel `json:"bias"`
}

// Risk returns the entry-to-stop distance.
func (s Signal) Risk() float64 {
	if s.Direction == DirectionBuy {
		return s.Price - s.Stop
	}
	return s.Stop - s.Price
}
