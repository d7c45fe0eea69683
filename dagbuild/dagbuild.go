// Package dagbuild constructs the command DAG: it maps each declared
// output path to its producer command, derives build-after edges from
// output-to-input matching, rejects duplicate producers and dependency
// cycles, and seeds the executor's ready queue with every
// dependency-free command.
package dagbuild

import (
	"github.com/swbuild/sw/iocmd"
)

// DuplicateOutputError is the fatal configuration error for two
// commands declaring the same output path; every path has at most one
// producer in a build.
type DuplicateOutputError struct {
	Path   string
	First  string
	Second string
}

func (e *DuplicateOutputError) Error() string {
	return "more than one command produces: " + e.Path + " (" + e.First + ", " + e.Second + ")"
}

// CycleError is the cycle-check failure.
type CycleError struct {
	Command string
}

func (e *CycleError) Error() string {
	return "circular dependency detected at: " + e.Command
}

// Build derives the DAG over commands: one pass maps every output
// path to its producer (erroring on a duplicate), a second pass walks
// every command's inputs to record producer-to-consumer edges and
// increment PendingDepsCount, then a three-colour DFS rejects cycles.
// On success it returns the commands whose PendingDepsCount is zero,
// the ready queue's initial seed.
func Build(commands []*iocmd.Command) (ready []*iocmd.Command, err error) {
	producerOf := make(map[string]*iocmd.Command, len(commands)*2)
	for _, c := range commands {
		c.Dependencies = nil
		c.Dependents = nil
		c.PendingDepsCount = 0
		c.DAGColor = iocmd.White
		for _, out := range c.Outputs {
			key := string(out)
			if existing, dup := producerOf[key]; dup {
				return nil, &DuplicateOutputError{Path: key, First: existing.Name, Second: c.Name}
			}
			producerOf[key] = c
		}
	}

	for _, c := range commands {
		seenProducer := make(map[*iocmd.Command]bool)
		for _, in := range c.Inputs {
			producer, ok := producerOf[string(in)]
			if !ok || producer == c || seenProducer[producer] {
				continue
			}
			seenProducer[producer] = true
			producer.Dependents = append(producer.Dependents, c)
			c.Dependencies = append(c.Dependencies, producer)
			c.PendingDepsCount++
		}
	}

	for _, c := range commands {
		if c.DAGColor == iocmd.White {
			if cycleAt := checkCycle(c); cycleAt != "" {
				return nil, &CycleError{Command: cycleAt}
			}
		}
	}

	for _, c := range commands {
		if c.PendingDepsCount == 0 {
			ready = append(ready, c)
		}
	}
	return ready, nil
}

// checkCycle performs a three-colour DFS rooted at c, returning the
// offending command's name if a back-edge (a Gray node reached again)
// is found, or "" if the subtree is acyclic.
func checkCycle(c *iocmd.Command) string {
	c.DAGColor = iocmd.Gray
	for _, dep := range c.Dependencies {
		switch dep.DAGColor {
		case iocmd.Gray:
			return dep.Name
		case iocmd.White:
			if name := checkCycle(dep); name != "" {
				return name
			}
		}
	}
	c.DAGColor = iocmd.Black
	return ""
}
