package preview

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomReader drops a leading UTF-8 byte order mark, which spreadsheet
// exports on Windows commonly prepend and which would otherwise leak
// into the first column name.
type bomReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMReader returns a reader that strips a leading UTF-8 BOM from r.
func NewBOMReader(r io.Reader) io.Reader {
	return &bomReader{br: bufio.NewReader(r)}
}

func (r *bomReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		head, err := r.br.Peek(len(utf8BOM))
		if bytes.Equal(head, utf8BOM) {
			if _, err := r.br.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		} else if err != nil && err != io.EOF {
			return 0, err
		}
	}
	return r.br.Read(p)
}

// sanitizer replaces bytes that are not valid UTF-8 with '?'. A multi-byte
// sequence split across two reads is carried over to the next call.
type sanitizer struct {
	src   io.Reader
	carry []byte
	ready []byte
	eof   bool
}

// NewSanitizer returns a reader that rewrites invalid UTF-8 in r.
// Replacement is byte for byte, so output never grows.
func NewSanitizer(r io.Reader) io.Reader {
	return &sanitizer{src: r, carry: make([]byte, 0, utf8.UTFMax)}
}

func (s *sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(s.ready) > 0 {
		n := copy(p, s.ready)
		s.ready = s.ready[n:]
		return n, nil
	}
	if len(p) < 2*utf8.UTFMax {
		var buf [2 * utf8.UTFMax]byte
		n, err := s.Read(buf[:])
		c := copy(p, buf[:n])
		if c < n {
			s.ready = append(s.ready[:0], buf[c:n]...)
			err = nil
		}
		return c, err
	}

	n := copy(p, s.carry)
	s.carry = s.carry[:0]

	var err error
	if !s.eof {
		var m int
		m, err = s.src.Read(p[n:])
		n += m
		if err == io.EOF {
			s.eof = true
			err = nil
		}
	}
	if n == 0 {
		if s.eof {
			return 0, io.EOF
		}
		return 0, err
	}

	w := s.clean(p[:n])
	if s.eof && len(s.carry) == 0 {
		return w, io.EOF
	}
	return w, err
}

// clean rewrites data in place and returns the number of bytes ready for
// the caller. A trailing incomplete rune is moved to carry unless the
// source is exhausted.
func (s *sanitizer) clean(data []byte) int {
	if !s.eof {
		if tail := partialTail(data); tail > 0 {
			s.carry = append(s.carry, data[len(data)-tail:]...)
			data = data[:len(data)-tail]
		}
	}
	if utf8.Valid(data) {
		return len(data)
	}
	w := 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			i++
			continue
		}
		copy(data[w:], data[i:i+size])
		w += size
		i += size
	}
	return w
}

// partialTail reports how many trailing bytes form the start of a
// multi-byte sequence that has not been completed yet.
func partialTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b < 0x80 {
			return 0
		}
		if b >= 0xC0 {
			if i < seqLen(b) {
				return i
			}
			return 0
		}
	}
	return 0
}

func seqLen(lead byte) int {
	switch {
	case lead < 0x80:
		return 1
	case lead < 0xC0:
		return 0
	case lead < 0xE0:
		return 2
	case lead < 0xF0:
		return 3
	default:
		return 4
	}
}

// CountingReader tracks how many bytes have passed through it.
type CountingReader struct {
	r io.Reader
	n int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (c *CountingReader) BytesRead() int64 {
	return c.n
}

// Normalize applies BOM stripping then UTF-8 sanitizing to r.
func Normalize(r io.Reader) io.Reader {
	return NewSanitizer(NewBOMReader(r))
}
