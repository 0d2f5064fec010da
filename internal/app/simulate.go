package app

import (
	"context"
	"errors"
	"time"

	"gas-weather-analytics/internal/alerting"
	"gas-weather-analytics/internal/weather"
)

// SimulateOptions describe a synthetic extreme reading.
type SimulateOptions struct {
	Kind      string
	AvgTemp   float64
	Threshold float64
}

// SimulateAlert sends one synthetic extreme-weather notification through the
// configured channels, to check alert delivery end to end.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	note, err := a.simulatedNotification(opts, time.Now())
	if err != nil {
		return err
	}

	if err := notifier.Notify(ctx, note); err != nil {
		return err
	}
	a.metrics.AlertsSent.Inc()
	a.Logger.Info().Str("kind", note.Kind).Float64("value", note.Value).Msg("simulated alert sent")
	return nil
}

func (a *App) simulatedNotification(opts SimulateOptions, now time.Time) (alerting.Notification, error) {
	ref := a.newCalculator().Reference()
	note := alerting.Notification{
		Date:          weather.CivilDate(now),
		Kind:          opts.Kind,
		Threshold:     opts.Threshold,
		Percentile:    a.Config.Analysis.Percentile,
		AvgTemp:       opts.AvgTemp,
		Channels:      a.Config.Alerting.Channels,
		AdditionalMsg: "simulated alert",
	}
	switch opts.Kind {
	case alerting.KindCDD:
		note.Value = weather.CDD(opts.AvgTemp, ref)
	case alerting.KindHDD:
		note.Value = weather.HDD(opts.AvgTemp, ref)
	default:
		return alerting.Notification{}, errors.New("--kind must be cdd or hdd")
	}
	if note.Value <= 0 {
		return alerting.Notification{}, errors.New("--avg-temp yields no degree days for this kind")
	}
	return note, nil
}
