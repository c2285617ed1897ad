package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(21)
	if err != nil {
		return prefix + "_fallback"
	}
	return prefix + "_" + id
}

func (g *Generator) GenerateUserID() string {
	return g.generate("usr")
}

func (g *Generator) GenerateConversationID() string {
	return g.generate("cv")
}

func (g *Generator) GenerateMessageID() string {
	return g.generate("msg")
}

func (g *Generator) GenerateMemoryID() string {
	return g.generate("mem")
}

func (g *Generator) GenerateModelConfigID() string {
	return g.generate("mc")
}
