package services

import (
	"math/rand"
	"sync"
	"time"
)

var promptTexts = []string{
	"The quick brown fox jumps over the lazy dog near the riverbank.",
	"Programming is the art of telling another human what one wants the computer to do.",
	"Blockchain technology enables decentralized applications to run without intermediaries.",
	"Typing speed matters less than accuracy when learning to code efficiently.",
	"Monad is a high-performance blockchain designed for scalability and speed.",
	"Farcaster is a decentralized social network built on open protocols.",
	"Smart contracts execute automatically when predetermined conditions are met.",
	"Web3 represents the next evolution of the internet with user ownership.",
	"Cryptography ensures security and privacy in blockchain transactions.",
	"Decentralization distributes power and control across network participants.",
}

// PromptService hands out the text each match is typed against.
type PromptService struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPromptService() *PromptService {
	return &PromptService{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *PromptService) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return promptTexts[s.rnd.Intn(len(promptTexts))]
}

// CalculateWPM uses the standard 5 characters = 1 word convention.
func CalculateWPM(charactersTyped int, elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	words := float64(charactersTyped) / 5
	minutes := elapsed.Minutes()
	return int(words/minutes + 0.5)
}

// CalculateProgress reports completion as a 0-100 percentage.
func CalculateProgress(typedLength, totalLength int) int {
	if totalLength == 0 {
		return 0
	}
	p := int(float64(typedLength)/float64(totalLength)*100 + 0.5)
	if p > 100 {
		return 100
	}
	return p
}
