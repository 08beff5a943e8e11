package world

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"spectate/server/internal/session"
)

// ErrInvalidPointName is returned for empty names or names with whitespace.
var ErrInvalidPointName = errors.New("world: invalid point name")

// Points is the named point book. It implements session.PointCatalog.
type Points struct {
	points map[string]session.Point
}

// NewPoints constructs an empty book.
func NewPoints() *Points {
	return &Points{points: make(map[string]session.Point)}
}

// ValidPointName reports whether name can be used for a point or group.
func ValidPointName(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t\r\n:")
}

// Define stores p, replacing any point with the same name.
func (b *Points) Define(p session.Point) error {
	if !ValidPointName(p.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidPointName, p.Name)
	}
	if p.Group != "" && !ValidPointName(p.Group) {
		return fmt.Errorf("%w: group %q", ErrInvalidPointName, p.Group)
	}
	b.points[p.Name] = p
	return nil
}

// Load replaces the book's contents, skipping invalid entries.
func (b *Points) Load(points []session.Point) int {
	b.points = make(map[string]session.Point, len(points))
	for _, p := range points {
		_ = b.Define(p)
	}
	return len(b.points)
}

// Remove deletes a point.
func (b *Points) Remove(name string) bool {
	if _, ok := b.points[name]; !ok {
		return false
	}
	delete(b.points, name)
	return true
}

func (b *Points) LookupPoint(name string) (session.Point, bool) {
	p, ok := b.points[name]
	return p, ok
}

// PointsInGroup lists a group's members by name.
func (b *Points) PointsInGroup(group string) []session.Point {
	var members []session.Point
	for _, p := range b.points {
		if p.Group == group {
			members = append(members, p)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members
}

// All lists every point by name.
func (b *Points) All() []session.Point {
	all := make([]session.Point, 0, len(b.points))
	for _, p := range b.points {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Len reports the number of points.
func (b *Points) Len() int {
	return len(b.points)
}
