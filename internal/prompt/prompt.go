package prompt

import (
	"errors"
	"fmt"

	"chat-backend/internal/database"
)

// HistoryWindow bounds how many trailing messages are forwarded to the
// provider. Bounds request size and cost; turns older than the window are
// simply forgotten.
const HistoryWindow = 10

// MaxAttachmentBytes is the provider-side inline payload limit.
const MaxAttachmentBytes = 10 * 1024 * 1024

var attachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

var (
	ErrAttachmentType     = errors.New("invalid file type")
	ErrAttachmentTooLarge = fmt.Errorf("file size exceeds %dMB", MaxAttachmentBytes/(1024*1024))
)

// Attachment is an inline binary payload (image or PDF) sent along with a
// chat message.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

func (a *Attachment) Validate() error {
	if !attachmentTypes[a.MimeType] {
		return fmt.Errorf("%w: %s", ErrAttachmentType, a.MimeType)
	}
	if len(a.Data) > MaxAttachmentBytes {
		return ErrAttachmentTooLarge
	}
	return nil
}

type Turn struct {
	Role    string
	Content string
}

// Prompt is the provider-agnostic request representation handed to a
// gateway.
type Prompt struct {
	System      string
	History     []Turn // bounded window, oldest first
	UserMessage string
	Attachment  *Attachment
}

// Assembler builds provider requests from conversation state. The persona
// instruction restricts answers to the configured domain and the requested
// response language.
type Assembler struct {
	assistantName string
	domain        string
	window        int
}

func NewAssembler(assistantName, domain string) *Assembler {
	return &Assembler{
		assistantName: assistantName,
		domain:        domain,
		window:        HistoryWindow,
	}
}

// Assemble produces the prompt for the newest user message. history is the
// conversation's prior messages in insertion order; only the trailing
// HistoryWindow of them are forwarded.
func (a *Assembler) Assemble(history []database.Message, language, userMessage string, attachment *Attachment) Prompt {
	if language == "" {
		language = "English"
	}

	if len(history) > a.window {
		history = history[len(history)-a.window:]
	}

	turns := make([]Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, Turn{Role: msg.Role, Content: msg.Content})
	}

	return Prompt{
		System:      a.systemInstruction(language),
		History:     turns,
		UserMessage: userMessage,
		Attachment:  attachment,
	}
}

func (a *Assembler) systemInstruction(language string) string {
	return fmt.Sprintf(`You are %[1]s, the official and highly professional AI assistant for %[2]s.
You provide accurate, up-to-date information about admissions, academic programs, campus facilities, and student life.
You respond in a polite, friendly, and conversational tone.
Respond entirely in %[3]s.
If asked about topics unrelated to %[2]s, politely redirect the conversation.`, a.assistantName, a.domain, language)
}
