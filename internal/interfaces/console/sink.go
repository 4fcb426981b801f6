package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"quotewatch/internal/application/port"
	"quotewatch/internal/domain/model"
)

const timeLayout = "2006-01-02 15:04:05"

type Sink struct {
	mu  sync.Mutex
	out io.Writer
	fmt *Formatter
}

func NewSink() port.Sink { return NewWriterSink(os.Stdout, true) }

func NewWriterSink(w io.Writer, color bool) *Sink {
	return &Sink{out: w, fmt: NewFormatter(color)}
}

// WriteQuotes 打印整表，前面带时间戳标题行
func (s *Sink) WriteQuotes(ts time.Time, stocks []model.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "\n%s quotes (%d)\n%s\n", ts.Format(timeLayout), len(stocks), s.fmt.Table(stocks))
	return err
}

func (s *Sink) WriteStatus(ts time.Time, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "%s [%s]\n", ts.Format(timeLayout), status)
	return err
}
