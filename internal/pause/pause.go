// Package pause expands the pause markers of a slide into successive reveal
// states.
package pause

import (
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"slidepress/internal/errs"
	"slidepress/internal/xmlutil"
)

// Tag is the full tag of a pause marker.
const Tag = xmlutil.Prefix + ":pause"

// Containers maps content container names to their root elements.
type Containers map[string]*etree.Element

// Clone deep-copies every container.
func (c Containers) Clone() Containers {
	out := make(Containers, len(c))
	for name, el := range c {
		out[name] = el.Copy()
	}
	return out
}

// Names returns the container names in sorted order.
func (c Containers) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func markers(root *etree.Element) []*etree.Element {
	var out []*etree.Element
	xmlutil.Walk(root, func(el *etree.Element) bool {
		if el.FullTag() == Tag {
			out = append(out, el)
		}
		return true
	})
	return out
}

// assignOrder numbers every marker in containers, visiting containers in
// name order. Markers without an order attribute get one more than the
// largest ID seen so far. The sorted distinct IDs are returned.
func assignOrder(containers Containers) ([]int, error) {
	used := make(map[int]bool)
	highest := 0
	for _, name := range containers.Names() {
		for _, m := range markers(containers[name]) {
			var id int
			if attr := m.SelectAttr("order"); attr != nil {
				v, err := strconv.Atoi(strings.TrimSpace(attr.Value))
				if err != nil {
					return nil, errs.Newf(errs.KindMalformedXML, "pause order %q in container %q is not an integer", attr.Value, name)
				}
				id = v
			} else {
				id = highest + 1
			}
			if used[id] {
				return nil, errs.Newf(errs.KindDuplicatePauseOrder, "duplicate pause order ID %d in container %q", id, name)
			}
			used[id] = true
			if id > highest {
				highest = id
			}
			m.CreateAttr("order", strconv.Itoa(id))
		}
	}

	ids := make([]int, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func stripAll(containers Containers) {
	for _, root := range containers {
		for _, m := range markers(root) {
			xmlutil.Remove(m)
		}
	}
}

// Expand returns the reveal states of a slide. With honor set, state k shows
// everything before the markers whose order is at least the k-th smallest
// ID; a final state shows the whole slide. Without honor, or without any
// markers, a single state is returned. Every state is an independent copy
// and holds no pause markers. The input containers are not modified.
func Expand(containers Containers, honor bool) ([]Containers, error) {
	containers = containers.Clone()
	if !honor {
		stripAll(containers)
		return []Containers{containers}, nil
	}

	ids, err := assignOrder(containers)
	if err != nil {
		return nil, err
	}

	states := make([]Containers, 0, len(ids)+1)
	for _, limit := range ids {
		state := containers.Clone()
		for _, root := range state {
			for _, m := range markers(root) {
				order, _ := strconv.Atoi(m.SelectAttrValue("order", "0"))
				if order >= limit {
					xmlutil.RemoveWithFollowing(m)
				} else {
					xmlutil.Remove(m)
				}
			}
		}
		states = append(states, state)
	}

	stripAll(containers)
	return append(states, containers), nil
}
