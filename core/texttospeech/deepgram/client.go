package deepgram

import (
	"fmt"
	"os"
	"slices"
)

type deepgramVoice string

const (
	VoiceAsteriaEN deepgramVoice = "aura-asteria-en"
	VoiceLunaEN    deepgramVoice = "aura-luna-en"
	VoiceStellaEN  deepgramVoice = "aura-stella-en"
	VoiceOrionEN   deepgramVoice = "aura-orion-en"

	defaultVoice = VoiceAsteriaEN
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{VoiceAsteriaEN, VoiceLunaEN, VoiceStellaEN, VoiceOrionEN}
}

// TextToSpeechClient opens streaming synthesis requests against the Deepgram
// speak endpoint, one per utterance.
type TextToSpeechClient struct {
	apiKey     string
	voice      deepgramVoice
	encoding   string
	sampleRate int
	scheme     string
	host       string
}

type ClientOption func(*TextToSpeechClient)

func WithVoice(voice deepgramVoice) ClientOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

// WithHost overrides the speak endpoint host, mainly for testing.
func WithHost(host string) ClientOption {
	return func(c *TextToSpeechClient) { c.host = host }
}

// WithEncoding overrides the audio encoding and sample rate requested from
// the backend.
func WithEncoding(encoding string, sampleRate int) ClientOption {
	return func(c *TextToSpeechClient) {
		c.encoding = encoding
		c.sampleRate = sampleRate
	}
}

func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		voice:      defaultVoice,
		encoding:   "linear16",
		sampleRate: 24000,
		scheme:     "wss",
		host:       "api.deepgram.com",
	}
	for _, opt := range opts {
		opt(client)
	}

	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice")
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		client.apiKey = apiKey
	}

	return client, nil
}
