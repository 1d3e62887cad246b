// Package question produces the arithmetic prompts served during a match.
package question

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"mathduel-service/internal/domain"

	"github.com/google/uuid"
)

const (
	minOperand        = 1
	maxAddition       = 50
	maxSubtraction    = 100
	maxMultiplication = 12
	maxDivision       = 12

	opAdd = "+"
	opSub = "-"
	opMul = "×"
	opDiv = "÷"
)

// Generator builds independent question lists. It holds no per-match state.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewGenerator() *Generator {
	return NewGeneratorWithSeed(time.Now().UnixNano())
}

// NewGeneratorWithSeed makes output reproducible in tests.
func NewGeneratorWithSeed(seed int64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Generate returns n fresh questions.
func (g *Generator) Generate(n int) []domain.Question {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		var expr string
		var answer int
		switch g.rnd.Intn(4) {
		case 0:
			a, b := g.between(minOperand, maxAddition), g.between(minOperand, maxAddition)
			expr, answer = fmt.Sprintf("%d %s %d", a, opAdd, b), a+b
		case 1:
			// a >= 2 keeps the result positive.
			a := g.between(minOperand+1, maxSubtraction)
			b := g.between(minOperand, a)
			expr, answer = fmt.Sprintf("%d %s %d", a, opSub, b), a-b
		case 2:
			a, b := g.between(minOperand, maxMultiplication), g.between(minOperand, maxMultiplication)
			expr, answer = fmt.Sprintf("%d %s %d", a, opMul, b), a*b
		default:
			b, q := g.between(minOperand, maxDivision), g.between(minOperand, maxDivision)
			expr, answer = fmt.Sprintf("%d %s %d", b*q, opDiv, b), q
		}
		out = append(out, domain.Question{
			ID:            uuid.NewString(),
			Expression:    expr,
			CorrectAnswer: answer,
			CreatedAt:     g.now(),
		})
	}
	return out
}

// between returns a value in [lo, hi).
func (g *Generator) between(lo, hi int) int {
	return lo + g.rnd.Intn(hi-lo)
}
