package store

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

var (
	ErrPageHidden    = errors.New("page is hidden")
	ErrUnknownPage   = errors.New("unknown page")
	ErrNoVisiblePage = errors.New("at least one swipe page must stay visible")
	ErrUnknownTheme  = errors.New("unknown theme")
)

func (d *Database) HiddenPages() ([]string, error) {
	var pages []string
	if err := d.Get(KeyHiddenPages, &pages); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	return pages, nil
}

// SetHiddenPages replaces the hidden page list. Hiding every swipe page is
// rejected. The stored default page is re-resolved so it never points at a
// hidden page.
func (d *Database) SetHiddenPages(pages []string) error {
	hidden := mapset.NewSet[string]()
	for _, p := range pages {
		if !slices.Contains(SwipePages, p) {
			return fmt.Errorf("%w: %s", ErrUnknownPage, p)
		}
		hidden.Add(p)
	}
	if hidden.Cardinality() >= len(SwipePages) {
		return ErrNoVisiblePage
	}

	ordered := make([]string, 0, hidden.Cardinality())
	for _, p := range SwipePages {
		if hidden.Contains(p) {
			ordered = append(ordered, p)
		}
	}
	if err := d.Put(KeyHiddenPages, ordered); err != nil {
		return err
	}

	page, err := d.DefaultPage()
	if err != nil {
		return err
	}
	return d.Put(KeyDefaultPage, page)
}

// DefaultPage returns the landing page. A hidden or unset choice falls back
// to the first visible swipe page.
func (d *Database) DefaultPage() (string, error) {
	hidden, err := d.HiddenPages()
	if err != nil {
		return "", err
	}

	candidate := SwipePages[0]
	if err := d.Get(KeyDefaultPage, &candidate); err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return resolveDefaultPage(candidate, hidden), nil
}

func resolveDefaultPage(candidate string, hidden []string) string {
	if !slices.Contains(hidden, candidate) {
		return candidate
	}
	for _, p := range SwipePages {
		if !slices.Contains(hidden, p) {
			return p
		}
	}
	return SwipePages[0]
}

func (d *Database) SetDefaultPage(page string) error {
	if !slices.Contains(SwipePages, page) {
		return fmt.Errorf("%w: %s", ErrUnknownPage, page)
	}
	hidden, err := d.HiddenPages()
	if err != nil {
		return err
	}
	if slices.Contains(hidden, page) {
		return fmt.Errorf("%w: %s", ErrPageHidden, page)
	}
	return d.Put(KeyDefaultPage, page)
}

func (d *Database) Theme() (*Theme, error) {
	name := DefaultTheme
	if err := d.Get(KeyTheme, &name); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	vars, ok := Themes[name]
	if !ok {
		name, vars = DefaultTheme, Themes[DefaultTheme]
	}
	vars = maps.Clone(vars)

	// themeVars is what the pages apply
	stored := map[string]string{}
	if err := d.Get(KeyThemeVars, &stored); err == nil && len(stored) > 0 {
		vars = stored
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &Theme{Name: name, Vars: vars}, nil
}

func (d *Database) SetTheme(name string) (*Theme, error) {
	vars, ok := Themes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTheme, name)
	}
	if err := d.Put(KeyTheme, name); err != nil {
		return nil, err
	}
	if err := d.Put(KeyThemeVars, vars); err != nil {
		return nil, err
	}
	return &Theme{Name: name, Vars: maps.Clone(vars)}, nil
}

// ResetTheme forgets the chosen theme so the default applies again.
func (d *Database) ResetTheme() (*Theme, error) {
	for _, key := range []string{KeyTheme, KeyThemeVars} {
		if err := d.Delete(key); err != nil {
			return nil, err
		}
	}
	return d.Theme()
}

func (d *Database) HiddenSessions() (mapset.Set[string], error) {
	var ids []string
	if err := d.Get(KeyHiddenSessions, &ids); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return mapset.NewSet(ids...), nil
}

func (d *Database) SetHiddenSessions(ids []string) error {
	set := mapset.NewSet(ids...)
	sorted := set.ToSlice()
	slices.Sort(sorted)
	return d.Put(KeyHiddenSessions, sorted)
}
