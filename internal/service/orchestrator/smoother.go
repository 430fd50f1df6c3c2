package orchestrator

import "strings"

// lineSmoother 按行切分输出，不完整的行留在缓冲里
type lineSmoother struct {
	buf strings.Builder
}

// push 追加文本，返回已完整的行（含换行符）
func (s *lineSmoother) push(text string) []string {
	if text == "" {
		return nil
	}
	s.buf.WriteString(text)
	pending := s.buf.String()

	var lines []string
	for {
		i := strings.IndexByte(pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, pending[:i+1])
		pending = pending[i+1:]
	}
	if len(lines) > 0 {
		s.buf.Reset()
		s.buf.WriteString(pending)
	}
	return lines
}

// flush 取出剩余文本
func (s *lineSmoother) flush() string {
	rest := s.buf.String()
	s.buf.Reset()
	return rest
}
