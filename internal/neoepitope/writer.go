package neoepitope

import "errors"

// Writer receives predicted neoepitopes.
type Writer interface {
	Write(n *Neoepitope) error
	Flush() error
}

// MultiWriter sends every neoepitope to each of its writers.
type MultiWriter []Writer

// Write implements Writer. It stops at the first failing writer.
func (m MultiWriter) Write(n *Neoepitope) error {
	for _, w := range m {
		if err := w.Write(n); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes every writer and joins their errors.
func (m MultiWriter) Flush() error {
	var errs []error
	for _, w := range m {
		errs = append(errs, w.Flush())
	}
	return errors.Join(errs...)
}

// Collector keeps neoepitopes in memory.
type Collector struct {
	Neoepitopes []*Neoepitope
}

// Write implements Writer.
func (c *Collector) Write(n *Neoepitope) error {
	c.Neoepitopes = append(c.Neoepitopes, n)
	return nil
}

// Flush implements Writer.
func (c *Collector) Flush() error { return nil }
