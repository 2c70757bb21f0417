package chunker_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/askdoc/internal/chunker"
)

func TestSplitEmptyInput(t *testing.T) {
	require.Nil(t, chunker.Split("", 100))
	require.Nil(t, chunker.Split("   \n\t  ", 100))
	require.Nil(t, chunker.Split("some text", 0))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	chunks := chunker.Split("Just one short sentence.", 100)
	require.Equal(t, []string{"Just one short sentence."}, chunks)
}

func TestSplitRespectsByteLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("This is a filler sentence for the splitter. ")
	}
	limit := 120
	chunks := chunker.Split(sb.String(), limit)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), limit)
		require.NotEqual(t, "", strings.TrimSpace(chunk))
	}
}

func TestSplitPreservesContentAndOrder(t *testing.T) {
	text := "First sentence here. Second sentence follows. Third one closes."
	chunks := chunker.Split(text, 25)
	joined := strings.Join(chunks, " ")
	require.Equal(t, strings.Fields(text), strings.Fields(joined))

	first := strings.Index(joined, "First")
	second := strings.Index(joined, "Second")
	third := strings.Index(joined, "Third")
	require.Less(t, first, second)
	require.Less(t, second, third)
}

func TestSplitOversizedSentenceFallsBackToRunes(t *testing.T) {
	sentence := strings.Repeat("x", 100) + "."
	chunks := chunker.Split(sentence, 30)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 30)
	}
	require.Equal(t, sentence, strings.Join(chunks, ""))
}

func TestSplitNeverTearsMultiByteRunes(t *testing.T) {
	text := strings.Repeat("測試文字", 20)
	chunks := chunker.Split(text, 10)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.True(t, utf8.ValidString(chunk))
		require.LessOrEqual(t, len(chunk), 10)
	}
	require.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitHandlesCJKTerminators(t *testing.T) {
	text := "第一句話。 第二句話！ 第三句話？ 第四句話。"
	chunks := chunker.Split(text, 20)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 20)
	}
	require.Contains(t, strings.Join(chunks, " "), "第一句話。")
	require.Contains(t, strings.Join(chunks, " "), "第四句話。")
}
