package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"empathos.app/relay/common/llm"
	"empathos.app/relay/internal/brain"
	"empathos.app/relay/internal/locale"
	"empathos.app/relay/internal/model"
)

const (
	replyFilename       = "empathos_reply.txt"
	translationFilename = "empathos_reply_translated.txt"
)

type draftOptions struct {
	review     string
	reviewFile string
	notes      string
	signature  string
	channel    string
	advanced   bool
	translate  string
	out        string
	showLog    bool
}

var draftOpts draftOptions

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Draft, review and optionally translate a reply",
	Long: `Draft a reply to a customer message. The message is translated to
English, drafted, reviewed and, with --translate, translated and polished.
In --advanced mode the model may ask clarifying questions, which are read
from stdin.`,
	Args: cobra.NoArgs,
	RunE: runDraft,
}

func init() {
	f := draftCmd.Flags()
	f.StringVarP(&draftOpts.review, "review", "r", "", "Customer message or review")
	f.StringVarP(&draftOpts.reviewFile, "review-file", "f", "", "Read the customer message from a file (- for stdin)")
	f.StringVarP(&draftOpts.notes, "notes", "n", "", "Operator notes with facts the reply needs")
	f.StringVarP(&draftOpts.signature, "signature", "s", "", "Signature the reply must end with")
	f.StringVarP(&draftOpts.channel, "channel", "c", string(model.ChannelEmail), "Response channel: email or public")
	f.BoolVar(&draftOpts.advanced, "advanced", false, "Let the model ask clarifying questions first")
	f.StringVarP(&draftOpts.translate, "translate", "t", "", "Translate the reviewed reply (see 'empathos languages')")
	f.StringVarP(&draftOpts.out, "out", "o", "", "Directory to write "+replyFilename+" and "+translationFilename+" to")
	f.BoolVar(&draftOpts.showLog, "show-log", false, "Print every completion exchange as JSON to stderr")
	draftCmd.MarkFlagsMutuallyExclusive("review", "review-file")
}

func runDraft(cmd *cobra.Command, _ []string) error {
	cfg := loadedConfig

	review, err := readReview(draftOpts, cmd.InOrStdin())
	if err != nil {
		return err
	}

	credential := ""
	if !cfg.LLM.HasServerKey() {
		credential, err = promptCredential(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	catalog, err := locale.Load(cfg.DefaultLocale)
	if err != nil {
		return err
	}

	d := &drafter{
		orch:    brain.NewOrchestrator(brain.OrchestratorConfig{DevLog: true}, llm.NewFactory(llm.FromConfig(cfg.LLM)), nil),
		catalog: catalog,
		lang:    cfg.DefaultLocale,
		ceiling: cfg.Drafting.WordCeiling,
		in:      bufio.NewReader(cmd.InOrStdin()),
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
	}
	return d.run(cmd.Context(), draftOpts, review, credential)
}

func readReview(opts draftOptions, stdin io.Reader) (string, error) {
	switch opts.reviewFile {
	case "":
		return opts.review, nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading review from stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(opts.reviewFile)
		if err != nil {
			return "", fmt.Errorf("reading review: %w", err)
		}
		return string(data), nil
	}
}

// promptCredential asks for the API key without echoing it. Without a
// terminal it returns "" and the missing credential is reported on first use.
func promptCredential(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(w, "API key: ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	return strings.TrimSpace(string(key)), nil
}

type drafter struct {
	orch    *brain.Orchestrator
	catalog *locale.Catalog
	lang    string
	ceiling int
	in      *bufio.Reader
	out     io.Writer
	errOut  io.Writer
}

func (d *drafter) run(ctx context.Context, opts draftOptions, review, credential string) error {
	mode := model.ModeSimple
	if opts.advanced {
		mode = model.ModeAdvanced
	}
	channel := model.Channel(opts.channel)

	sess := model.NewSession(uuid.NewString(), mode, time.Now())
	if opts.showLog {
		defer d.printLog(sess)
	}

	err := d.orch.SetInputs(sess, brain.Inputs{
		ClientReview:  &review,
		OperatorNotes: &opts.notes,
		Signature:     &opts.signature,
		Channel:       &channel,
	})
	if err != nil {
		return d.explain(err)
	}

	if err := d.orch.Generate(ctx, sess, credential); err != nil {
		return d.explain(err)
	}

	if sess.Stage == model.StageAsked {
		answers, err := d.ask(sess.Questions)
		if err != nil {
			return err
		}
		if err := d.orch.SubmitAnswers(ctx, sess, answers, credential); err != nil {
			return d.explain(err)
		}
	}

	fmt.Fprintln(d.out, sess.ReviewedDraft)

	if opts.translate != "" {
		if err := d.orch.Translate(ctx, sess, opts.translate, credential); err != nil {
			return d.explain(err)
		}
		fmt.Fprintf(d.out, "\n--- %s ---\n%s\n", sess.TargetLanguage, sess.ReviewedTranslation)
	}

	d.printCounts(sess)

	if opts.out != "" {
		return d.write(opts.out, sess)
	}
	return nil
}

// ask reads one answer per question from stdin, asking again while an
// answer is blank.
func (d *drafter) ask(questions []string) (map[int]string, error) {
	fmt.Fprintln(d.errOut, d.catalog.Message(d.lang, "ui.questions"))

	answers := make(map[int]string, len(questions))
	for i, q := range questions {
		fmt.Fprintf(d.errOut, "Q%d: %s\n> ", i+1, q)
		for {
			line, err := d.in.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				return nil, fmt.Errorf("reading answer %d: %w", i+1, err)
			}
			if answer := strings.TrimSpace(line); answer != "" {
				answers[i] = answer
				break
			}
			fmt.Fprintf(d.errOut, "%s\n> ", d.catalog.Message(d.lang, "error.unanswered_question"))
		}
	}
	return answers, nil
}

func (d *drafter) printCounts(sess *model.Session) {
	counts := brain.CountWords(sess, d.ceiling)
	fmt.Fprintln(d.errOut, d.catalog.Message(d.lang, "ui.word_count",
		"words", fmt.Sprint(counts.ReviewedDraft.Words),
		"ceiling", fmt.Sprint(counts.Ceiling)))
	if len(counts.Warnings()) > 0 {
		fmt.Fprintln(d.errOut, d.catalog.Message(d.lang, "warning.over_ceiling", "ceiling", fmt.Sprint(counts.Ceiling)))
	}
}

func (d *drafter) write(dir string, sess *model.Session) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, replyFilename), []byte(sess.ReviewedDraft), 0o644); err != nil {
		return fmt.Errorf("writing reply: %w", err)
	}
	if sess.ReviewedTranslation != "" {
		if err := os.WriteFile(filepath.Join(dir, translationFilename), []byte(sess.ReviewedTranslation), 0o644); err != nil {
			return fmt.Errorf("writing translation: %w", err)
		}
	}
	return nil
}

func (d *drafter) printLog(sess *model.Session) {
	enc := json.NewEncoder(d.errOut)
	enc.SetIndent("", "  ")
	_ = enc.Encode(sess.Exchanges)
}

// explain prefixes err with its localized message.
func (d *drafter) explain(err error) error {
	return fmt.Errorf("%s: %w", d.catalog.Message(d.lang, brain.MessageKey(err)), err)
}
