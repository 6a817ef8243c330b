// Package seed loads the built-in decision tree and first-aid guides into
// an empty store.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/conectaribas/conectaribas/internal/domain/diagnosis"
	"github.com/conectaribas/conectaribas/internal/domain/firstaid"
	"github.com/conectaribas/conectaribas/internal/domain/severity"
	"github.com/conectaribas/conectaribas/internal/platform/db"
	"github.com/conectaribas/conectaribas/internal/platform/observe"
)

//go:embed data.yaml
var defaultData []byte

type Data struct {
	Questions []QuestionData `yaml:"questions"`
	Guides    []GuideData    `yaml:"guides"`
}

type QuestionData struct {
	Key      string       `yaml:"key"`
	Text     string       `yaml:"text"`
	Category string       `yaml:"category"`
	Order    int          `yaml:"order"`
	Previous string       `yaml:"previous"`
	Answers  []AnswerData `yaml:"answers"`
}

// AnswerData sets either Next (a question key) or Result (a severity).
type AnswerData struct {
	Text            string `yaml:"text"`
	Weight          int    `yaml:"weight"`
	Next            string `yaml:"next"`
	Result          string `yaml:"result"`
	Recommendations string `yaml:"recommendations"`
}

type GuideData struct {
	Title        string  `yaml:"title"`
	Category     string  `yaml:"category"`
	Description  string  `yaml:"description"`
	Content      string  `yaml:"content"`
	WarningSigns string  `yaml:"warning_signs"`
	Image        *string `yaml:"image"`
	Order        int     `yaml:"order"`
	Emergency    bool    `yaml:"emergency"`
}

// Default returns the built-in data set.
func Default() (*Data, error) {
	return Parse(defaultData)
}

func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	return &d, nil
}

// build resolves question keys to fresh IDs and validates every answer.
func (d *Data) build() ([]*diagnosis.Question, []*diagnosis.Answer, error) {
	ids := make(map[string]uuid.UUID, len(d.Questions))
	for _, q := range d.Questions {
		if q.Key == "" {
			return nil, nil, fmt.Errorf("question %q has no key", q.Text)
		}
		if _, dup := ids[q.Key]; dup {
			return nil, nil, fmt.Errorf("duplicate question key %q", q.Key)
		}
		ids[q.Key] = uuid.New()
	}

	var (
		questions []*diagnosis.Question
		answers   []*diagnosis.Answer
	)
	for _, qd := range d.Questions {
		q := &diagnosis.Question{
			ID:       ids[qd.Key],
			Text:     qd.Text,
			Category: qd.Category,
			Order:    qd.Order,
			Required: true,
		}
		if qd.Previous != "" {
			prev, ok := ids[qd.Previous]
			if !ok {
				return nil, nil, fmt.Errorf("question %q: unknown previous %q", qd.Key, qd.Previous)
			}
			q.PreviousID = &prev
		}
		questions = append(questions, q)

		for _, ad := range qd.Answers {
			var result diagnosis.Result
			switch {
			case ad.Next != "" && ad.Result != "":
				return nil, nil, fmt.Errorf("answer %q: %w", ad.Text, diagnosis.ErrMalformedAnswer)
			case ad.Next != "":
				next, ok := ids[ad.Next]
				if !ok {
					return nil, nil, fmt.Errorf("answer %q: unknown next question %q", ad.Text, ad.Next)
				}
				result = diagnosis.GoTo{QuestionID: next}
			case ad.Result != "":
				sev, err := severity.Parse(ad.Result)
				if err != nil {
					return nil, nil, fmt.Errorf("answer %q: %w", ad.Text, err)
				}
				result = diagnosis.Outcome{Severity: sev, Recommendations: ad.Recommendations}
			}
			a, err := diagnosis.NewAnswer(q.ID, ad.Text, ad.Weight, result)
			if err != nil {
				return nil, nil, fmt.Errorf("question %q: %w", qd.Key, err)
			}
			answers = append(answers, a)
		}
	}
	return questions, answers, nil
}

func (d *Data) guides() []*firstaid.Guide {
	out := make([]*firstaid.Guide, 0, len(d.Guides))
	for _, gd := range d.Guides {
		out = append(out, &firstaid.Guide{
			Title:         gd.Title,
			Category:      gd.Category,
			Description:   gd.Description,
			Content:       gd.Content,
			WarningSigns:  gd.WarningSigns,
			ImageFileName: gd.Image,
			DisplayOrder:  gd.Order,
			IsEmergency:   gd.Emergency,
		})
	}
	return out
}

// Loader writes seed data. The tree and the guides load concurrently, each
// in its own transaction, and each is skipped when its table already has
// rows.
type Loader struct {
	tx     db.TxRunner
	tree   diagnosis.TreeRepository
	guides firstaid.GuideRepository
	broker *observe.Broker
	logger zerolog.Logger
}

func NewLoader(tx db.TxRunner, tree diagnosis.TreeRepository, guides firstaid.GuideRepository,
	broker *observe.Broker, logger zerolog.Logger) *Loader {
	return &Loader{tx: tx, tree: tree, guides: guides, broker: broker,
		logger: logger.With().Str("component", "seed").Logger()}
}

// Result reports what Load wrote.
type Result struct {
	Questions int
	Answers   int
	Guides    int
}

func (l *Loader) Load(ctx context.Context, d *Data) (Result, error) {
	questions, answers, err := d.build()
	if err != nil {
		return Result{}, err
	}

	var res Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := l.tree.CountQuestions(gctx)
		if err != nil {
			return fmt.Errorf("count questions: %w", err)
		}
		if n > 0 {
			l.logger.Debug().Int("questions", n).Msg("decision tree present, skipping")
			return nil
		}
		err = l.tx.InTx(gctx, func(ctx context.Context) error {
			for _, q := range questions {
				if err := l.tree.CreateQuestion(ctx, q); err != nil {
					return fmt.Errorf("insert question %q: %w", q.Text, err)
				}
			}
			for _, a := range answers {
				if err := l.tree.CreateAnswer(ctx, a); err != nil {
					return fmt.Errorf("insert answer %q: %w", a.Text, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		res.Questions, res.Answers = len(questions), len(answers)
		l.broker.Notify(diagnosis.Topic)
		return nil
	})
	g.Go(func() error {
		n, err := l.guides.Count(gctx)
		if err != nil {
			return fmt.Errorf("count guides: %w", err)
		}
		if n > 0 {
			l.logger.Debug().Int("guides", n).Msg("first aid guides present, skipping")
			return nil
		}
		guides := d.guides()
		err = l.tx.InTx(gctx, func(ctx context.Context) error {
			for _, guide := range guides {
				if err := guide.Validate(); err != nil {
					return fmt.Errorf("guide %q: %w", guide.Title, err)
				}
				if err := l.guides.Create(ctx, guide); err != nil {
					return fmt.Errorf("insert guide %q: %w", guide.Title, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		res.Guides = len(guides)
		l.broker.Notify(firstaid.Topic)
		return nil
	})
	if err := g.Wait(); err != nil {
		return res, err
	}

	l.logger.Info().
		Int("questions", res.Questions).
		Int("answers", res.Answers).
		Int("guides", res.Guides).
		Msg("seed data loaded")
	return res, nil
}

// LaunchState is the first-run flag of the preference store.
type LaunchState interface {
	IsFirstLaunch() bool
	MarkLaunched() error
}

// OnFirstLaunch loads the default data in the background when the app runs
// for the first time. The attempt is made once; a failure is logged and the
// app keeps running without seed data. The returned channel is closed when
// the attempt has finished.
func (l *Loader) OnFirstLaunch(ctx context.Context, state LaunchState) <-chan struct{} {
	done := make(chan struct{})
	if !state.IsFirstLaunch() {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		d, err := Default()
		if err == nil {
			_, err = l.Load(ctx, d)
		}
		if err != nil {
			l.logger.Error().Err(err).Msg("initial data load failed")
		}
		if err := state.MarkLaunched(); err != nil {
			l.logger.Error().Err(err).Msg("failed to record first launch")
		}
	}()
	return done
}
