package favorites

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store — избранные символы в текстовом файле, по одному на строку.
// Запись сквозная: каждое изменение сразу сохраняется на диск.
// Не потокобезопасен: доступ сериализует dashboard.State.
type Store struct {
	dir  string
	path string
	set  map[string]struct{}
}

// NewStore — хранилище в dir/file. Файл не читается до Load.
func NewStore(dir, file string) *Store {
	return &Store{
		dir:  dir,
		path: filepath.Join(dir, file),
		set:  make(map[string]struct{}),
	}
}

func (s *Store) Path() string { return s.path }

// Load — создаёт каталог при необходимости и читает файл.
// Отсутствие файла — пустое множество, не ошибка.
func (s *Store) Load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.set = make(map[string]struct{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("open favorites: %w", err)
	}
	defer f.Close()

	set := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		sym := strings.ToUpper(strings.TrimSpace(sc.Text()))
		if sym == "" {
			continue
		}
		set[sym] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read favorites: %w", err)
	}
	s.set = set
	return nil
}

// Save — перезаписывает файл текущим множеством.
func (s *Store) Save() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	var b strings.Builder
	for _, sym := range s.List() {
		b.WriteString(sym)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write favorites: %w", err)
	}
	return nil
}

// Toggle — добавить или убрать символ и сразу сохранить.
// При ошибке записи членство откатывается, чтобы память совпадала с диском.
// Возвращает новое членство.
func (s *Store) Toggle(symbol string) (bool, error) {
	_, was := s.set[symbol]
	if was {
		delete(s.set, symbol)
	} else {
		s.set[symbol] = struct{}{}
	}

	if err := s.Save(); err != nil {
		if was {
			s.set[symbol] = struct{}{}
		} else {
			delete(s.set, symbol)
		}
		return was, err
	}
	return !was, nil
}

func (s *Store) Contains(symbol string) bool {
	_, ok := s.set[symbol]
	return ok
}

// List — отсортированный список символов.
func (s *Store) List() []string {
	out := make([]string, 0, len(s.set))
	for sym := range s.set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Len() int { return len(s.set) }
