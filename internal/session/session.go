// Package session drives an interactive training session: the master password
// fingerprint check, then the add/edit/remove/train menu.
//
// All terminal concerns live behind Input and an io.Writer, so the controller
// can run against a real terminal or a scripted test double.
package session

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/Hussein-Mazeh/pwtrainer/internal/service"
	"github.com/Hussein-Mazeh/pwtrainer/krypto"
)

// ErrCancelled reports that the user left the master password prompt empty.
var ErrCancelled = errors.New("session cancelled")

// Input is the source of user answers.
type Input interface {
	// ReadLine returns one line of visible text without the trailing newline.
	ReadLine(prompt string) (string, error)
	// ReadSecret returns one line of text that must not be echoed.
	ReadSecret(prompt string) (string, error)
	// Confirm asks a yes/no question.
	Confirm(prompt string, def bool) (bool, error)
	// Select returns the index of the chosen item.
	Select(prompt string, items []string, def int) (int, error)
}

// Store is the part of service.Service the controller relies on.
type Store interface {
	Created() bool
	Len() int
	Labels() []string
	Contains(label string) bool
	Fingerprint(master string) (string, error)
	Add(label, password string) error
	Edit(label, password string) error
	Remove(label string) error
	Check(label, candidate string) (bool, error)
	Save() error
	Close() error
}

// State is a step of the session state machine.
type State int

const (
	StateStart State = iota
	StateMasterPrompt
	StateUnlocked
	StateAdding
	StateEditing
	StateRemoving
	StateTraining
	StateExit
)

var stateNames = [...]string{"start", "master-prompt", "unlocked", "adding", "editing", "removing", "training", "exit"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Menu labels.
const (
	MenuAdd    = "Add a new account"
	MenuEdit   = "Edit an existing account"
	MenuRemove = "Remove an account"
	MenuTrain  = "Train passwords"
	MenuExit   = "Exit"
	// TrainRandom is the first entry of the training picker.
	TrainRandom = "Random"
)

// Option customises a Controller.
type Option func(*Controller)

// WithPicker replaces the random label picker used by random training.
// pick(n) must return a value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(c *Controller) { c.pick = pick }
}

// WithStateHook registers fn to observe every state transition.
func WithStateHook(fn func(State)) Option {
	return func(c *Controller) { c.onState = fn }
}

// Controller runs one session against a single store.
type Controller struct {
	store   Store
	in      Input
	out     io.Writer
	state   State
	pick    func(n int) int
	onState func(State)
}

// New returns a controller in StateStart. The store must already be loaded.
func New(store Store, in Input, out io.Writer, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		in:    in,
		out:   out,
		state: StateStart,
		pick:  rand.Intn,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Run executes the session until the user exits. Closing the input ends the
// session like Exit. Pending changes are saved before Run returns.
func (c *Controller) Run() error {
	c.enter(StateMasterPrompt)
	if err := c.masterPrompt(); err != nil {
		if errors.Is(err, io.EOF) {
			err = ErrCancelled
		}
		return c.exit(err)
	}

	c.enter(StateUnlocked)
	c.printf("Registered passwords: %d\n", c.store.Len())
	return c.exit(c.menuLoop())
}

func (c *Controller) masterPrompt() error {
	if c.store.Created() {
		c.println("Creating a storage file for you")
		master, err := c.readNonEmptySecret("Set master password")
		if err != nil {
			return err
		}
		fp, err := c.store.Fingerprint(master)
		if err != nil {
			return err
		}
		c.printf("%s is your check\n", fp)
		return c.store.Save()
	}

	for {
		master, err := c.in.ReadSecret("Master password (leave empty to abort)")
		if err != nil {
			return err
		}
		if master == "" {
			return ErrCancelled
		}
		fp, err := c.store.Fingerprint(master)
		if err != nil {
			return err
		}
		// Display only: a wrong master password just shows a different fingerprint.
		ok, err := c.in.Confirm(fmt.Sprintf("Does %s look familiar?", fp), true)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

func (c *Controller) menuLoop() error {
	first := true
	for {
		items := []string{MenuAdd}
		if c.store.Len() > 0 {
			items = append(items, MenuEdit, MenuRemove, MenuTrain)
		}
		items = append(items, MenuExit)

		def := len(items) - 1
		if first {
			def = 0
			if c.store.Len() > 0 {
				def = len(items) - 2
			}
			first = false
		}

		idx, err := c.in.Select("What do you want to do?", items, def)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(items) {
			continue
		}

		var action func() error
		switch items[idx] {
		case MenuAdd:
			c.enter(StateAdding)
			action = c.add
		case MenuEdit:
			c.enter(StateEditing)
			action = c.edit
		case MenuRemove:
			c.enter(StateRemoving)
			action = c.remove
		case MenuTrain:
			c.enter(StateTraining)
			action = c.train
		case MenuExit:
			return nil
		}

		if err := c.report(action()); err != nil {
			return err
		}
		c.enter(StateUnlocked)
	}
}

// report prints recoverable action errors and returns the rest.
func (c *Controller) report(err error) error {
	switch {
	case err == nil:
		return nil
	case service.IsUserError(err):
		c.printf("%s\n", err)
		return nil
	case errors.Is(err, krypto.ErrHashing):
		c.println("Could not hash the password; nothing was changed")
		return nil
	case errors.Is(err, service.ErrSaveFailed):
		c.printf("Could not save the store, it will be retried on exit: %s\n", err)
		return nil
	default:
		return err
	}
}

func (c *Controller) add() error {
	for {
		label, err := c.readLabel()
		if err != nil || label == "" {
			return err
		}
		if c.store.Contains(label) {
			c.printf("An account named %q already exists\n", label)
			continue
		}
		password, err := c.readNewPassword()
		if err != nil {
			return err
		}
		return c.store.Add(label, password)
	}
}

func (c *Controller) edit() error {
	label, err := c.readExistingLabel()
	if err != nil || label == "" {
		return err
	}
	password, err := c.readNewPassword()
	if err != nil {
		return err
	}
	return c.store.Edit(label, password)
}

func (c *Controller) remove() error {
	label, err := c.readExistingLabel()
	if err != nil || label == "" {
		return err
	}
	ok, err := c.in.Confirm(fmt.Sprintf("Remove %s?", label), false)
	if err != nil || !ok {
		return err
	}
	return c.store.Remove(label)
}

func (c *Controller) train() error {
	labels := c.store.Labels()
	if len(labels) == 0 {
		c.println("Nothing to train yet")
		return nil
	}

	idx, err := c.in.Select("Which account?", append([]string{TrainRandom}, labels...), 0)
	if err != nil {
		return err
	}
	if idx > 0 && idx <= len(labels) {
		_, err := c.drill(labels[idx-1])
		return err
	}

	for {
		done, err := c.drill(labels[c.pick(len(labels))])
		if err != nil || done {
			return err
		}
	}
}

// drill asks for label's password until it matches. done reports that the user
// aborted with an empty answer.
func (c *Controller) drill(label string) (done bool, err error) {
	for {
		candidate, err := c.in.ReadSecret(fmt.Sprintf("Password for %s (leave empty to abort)", label))
		if err != nil {
			return true, err
		}
		if candidate == "" {
			c.println("Empty password, abort training")
			return true, nil
		}
		ok, err := c.store.Check(label, candidate)
		if err != nil {
			return true, err
		}
		if ok {
			c.println("Good!")
			return false, nil
		}
		c.println("Incorrect, please try again")
	}
}

func (c *Controller) readLabel() (string, error) {
	label, err := c.in.ReadLine("Account name (leave empty to cancel)")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(label), nil
}

func (c *Controller) readExistingLabel() (string, error) {
	for {
		label, err := c.readLabel()
		if err != nil || label == "" {
			return "", err
		}
		if c.store.Contains(label) {
			return label, nil
		}
		c.println("This account does not exist")
	}
}

func (c *Controller) readNewPassword() (string, error) {
	for {
		password, err := c.readNonEmptySecret("Password")
		if err != nil {
			return "", err
		}
		confirm, err := c.in.ReadSecret("Confirm password")
		if err != nil {
			return "", err
		}
		if password == confirm {
			return password, nil
		}
		c.println("Passwords do not match")
	}
}

func (c *Controller) readNonEmptySecret(prompt string) (string, error) {
	for {
		secret, err := c.in.ReadSecret(prompt)
		if err != nil {
			return "", err
		}
		if secret != "" {
			return secret, nil
		}
		c.println("Password must not be empty")
	}
}

func (c *Controller) exit(err error) error {
	c.enter(StateExit)
	closeErr := c.store.Close()
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("final save: %w", closeErr)
	}
	return nil
}

func (c *Controller) enter(s State) {
	c.state = s
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Controller) println(msg string) { fmt.Fprintln(c.out, msg) }

func (c *Controller) printf(format string, args ...any) { fmt.Fprintf(c.out, format, args...) }
