package provider

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"

	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

// buildMIMEMessage renders msg as an RFC 5322 message. When both bodies are
// present it produces multipart/alternative with the text part first.
func buildMIMEMessage(msg domain.OutgoingMessage, messageID string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	writeHeader(&buf, "From", msg.From.String())
	writeHeader(&buf, "To", msg.To)
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", sanitizeHeader(msg.Subject)))
	writeHeader(&buf, "Date", now.UTC().Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", messageID)
	writeHeader(&buf, "MIME-Version", "1.0")

	if msg.HTMLBody != "" && msg.TextBody != "" {
		mw := multipart.NewWriter(&buf)
		writeHeader(&buf, "Content-Type", "multipart/alternative; boundary="+mw.Boundary())
		buf.WriteString("\r\n")
		if err := writePart(mw, "text/plain; charset=UTF-8", msg.TextBody); err != nil {
			return nil, err
		}
		if err := writePart(mw, "text/html; charset=UTF-8", msg.HTMLBody); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("close multipart: %w", err)
		}
		return buf.Bytes(), nil
	}

	contentType, body := "text/html; charset=UTF-8", msg.HTMLBody
	if body == "" {
		contentType, body = "text/plain; charset=UTF-8", msg.TextBody
	}
	writeHeader(&buf, "Content-Type", contentType)
	writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")
	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, body string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part: %w", err)
	}
	qp := quotedprintable.NewWriter(pw)
	if _, err := qp.Write([]byte(body)); err != nil {
		return fmt.Errorf("encode part: %w", err)
	}
	return qp.Close()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(sanitizeHeader(value))
	buf.WriteString("\r\n")
}

// sanitizeHeader strips line breaks so values cannot inject headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}
