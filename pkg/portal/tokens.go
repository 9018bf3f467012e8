package portal

import (
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func loadCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
		if codecErr != nil {
			log.Warn().Err(codecErr).Msg("could not load cl100k_base tokenizer, estimating by length")
		}
	})
	return codec, codecErr
}

// EstimateTokens counts the cl100k_base tokens of text. If the codec is not
// available it falls back to four characters per token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	c, err := loadCodec()
	if err == nil {
		ids, _, err := c.Encode(text)
		if err == nil {
			return len(ids)
		}
	}

	return (utf8.RuneCountInString(text) + 3) / 4
}
