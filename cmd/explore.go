package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/vo2scope/internal/config"
	"github.com/KaramelBytes/vo2scope/internal/dataset"
	"github.com/KaramelBytes/vo2scope/internal/explore"
	"github.com/KaramelBytes/vo2scope/internal/logging"
	"github.com/KaramelBytes/vo2scope/internal/report"
	"github.com/KaramelBytes/vo2scope/internal/session"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var (
	expSrc     sourceFlags
	expSession string
	expExec    string
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Interactively filter, bin and brush VO2 records",
	Long: `Start an interactive explorer over the joined records. Type "help" for the
command list. With --exec the given commands (separated by ';') are run
without a prompt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession(expSession)
		if err != nil {
			return err
		}
		src, err := expSrc.sources(sess)
		if err != nil {
			return err
		}
		ds, err := loadDataset(cmd.Context(), src)
		if err != nil {
			return err
		}
		c := settings()
		e := explore.New(ds.Records, explore.Options{Bins: c.BinCount, Nice: c.NiceDomain})
		if sess != nil {
			if err := sess.Apply(e); err != nil {
				return err
			}
		}
		r := &repl{e: e, src: src, meta: reportMeta(src, ds, sess), sess: sess, out: cmd.OutOrStdout()}
		e.OnChange(r.onChange)

		if cmd.Flags().Changed("exec") {
			for _, line := range strings.Split(expExec, ";") {
				quit, err := r.exec(line)
				if err != nil {
					return err
				}
				if quit {
					break
				}
			}
			return nil
		}
		return r.interactive()
	},
}

// repl drives an Explorer from typed commands.
type repl struct {
	e    *explore.Explorer
	src  dataset.Sources
	meta report.Meta
	sess *session.Session
	out  io.Writer
}

const replHelp = `Commands:
  male | female         toggle a gender
  genders <list>        set active genders (male,female | both | none)
  age <lo:hi>           set the age range (lo: or :hi leave a side open)
  weight <lo:hi>        set the weight range
  temp <lo:hi>          set the temperature range
  bins <n>              set the number of histogram bins
  brush <lo:hi>         select a VO2 range and show its statistics
  clear                 clear the selection
  reset                 restore all filters and clear the selection
  show                  print the full report
  json                  print the report as JSON
  save [name]           save the current state as a session
  help                  show this help
  quit | exit           leave the explorer
`

func (r *repl) interactive() error {
	histFile := ""
	if dir, err := cfgpkg.Dir(); err == nil {
		histFile = filepath.Join(dir, "explore_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "vo2> ",
		HistoryFile:     histFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          r.out,
	})
	if err != nil {
		return fmt.Errorf("start prompt: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(r.out, "%s\nType \"help\" for commands.\n", statusLine(r.e.View()))
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := r.exec(line)
		if err != nil {
			fmt.Fprintf(r.out, "✗ %v\n", err)
			continue
		}
		if quit {
			return nil
		}
	}
}

func (r *repl) onChange(v explore.View) {
	fmt.Fprintln(r.out, statusLine(v))
}

// exec runs one command line. quit is true when the user asked to leave.
func (r *repl) exec(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, arg := strings.ToLower(fields[0]), strings.Join(fields[1:], " ")
	logger.Debug("explore command", logging.String("cmd", name), logging.String("arg", arg))
	switch name {
	case "male", "female":
		g, _ := dataset.ParseGender(name)
		_, err = r.e.ToggleGender(g)
	case "genders", "gender":
		var s explore.GenderSet
		if s, err = explore.ParseGenderSet(arg); err == nil {
			r.e.SetGenders(s)
		}
	case "age", "weight", "temp", "temperature", "brush":
		err = r.setRange(name, arg)
	case "bins":
		var k int
		if k, err = strconv.Atoi(arg); err != nil {
			err = fmt.Errorf("bins: expected an integer, got %q", arg)
		} else {
			_, err = r.e.SetBins(k)
		}
	case "clear":
		r.e.ClearSelection()
	case "reset":
		r.e.Reset()
	case "show":
		fmt.Fprint(r.out, report.Markdown(r.e.View(), r.meta))
	case "json":
		var b []byte
		if b, err = report.JSON(r.e.View(), r.meta); err == nil {
			fmt.Fprintln(r.out, string(b))
		}
	case "save":
		err = r.save(arg)
	case "help", "?":
		fmt.Fprint(r.out, replHelp)
	case "quit", "exit", "q":
		return true, nil
	default:
		err = fmt.Errorf("unknown command %q (type \"help\")", name)
	}
	return false, err
}

func (r *repl) setRange(name, arg string) error {
	if arg == "" {
		return fmt.Errorf("%s: expected a range lo:hi", name)
	}
	rg, err := explore.ParseRange(arg)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	switch name {
	case "age":
		r.e.SetAgeRange(rg)
	case "weight":
		r.e.SetWeightRange(rg)
	case "temp", "temperature":
		r.e.SetTempRange(rg)
	case "brush":
		r.e.SelectRange(rg)
	}
	return nil
}

func (r *repl) save(name string) error {
	if r.sess == nil || (name != "" && session.Slug(name) != session.Slug(r.sess.Name)) {
		if name == "" {
			return errors.New("save: a session name is required")
		}
		root, err := sessionsDir()
		if err != nil {
			return err
		}
		r.sess = session.New(name, r.src.MetadataPath, r.src.MeasurementsPath, root)
		r.meta.Session = r.sess.Name
	}
	r.sess.Capture(r.e)
	if err := r.sess.Save(); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "✓ Saved session %q to %s\n", r.sess.Name, r.sess.RootDir())
	return nil
}

// statusLine is the one-line summary printed after every change.
func statusLine(v explore.View) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s records (male %s, female %s) | genders %s",
		report.FormatCount(len(v.Filtered)),
		report.FormatCount(v.Counts[dataset.Male]),
		report.FormatCount(v.Counts[dataset.Female]),
		v.Filter.Genders))
	h := v.Histogram
	b.WriteString(fmt.Sprintf(" | %d bins over [%.1f, %.1f]", h.BinCount, h.Domain.Min, h.Domain.Max))
	if h.Empty {
		b.WriteString(" (empty)")
	}
	if s := v.Selection; s != nil {
		b.WriteString(fmt.Sprintf(" | selection %s: %s (male %s, female %s)",
			report.FormatRange(s.Range), report.FormatCount(s.Total), report.FormatCount(s.Male), report.FormatCount(s.Female)))
		if m, ok := s.MeanValue(); ok {
			b.WriteString(fmt.Sprintf(", mean %.1f", m))
		} else {
			b.WriteString(", mean n/a")
		}
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(exploreCmd)
	expSrc.register(exploreCmd)
	exploreCmd.Flags().StringVarP(&expSession, "session", "s", "", "start from a saved session")
	exploreCmd.Flags().StringVar(&expExec, "exec", "", "run ';'-separated commands without a prompt")
}
