package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Artflow/internal/domain"
)

// ErrNoTrigger это у schedule нет ни cron_expr, ни interval_sec.
var ErrNoTrigger = errors.New("schedule has neither cron_expr nor interval_sec")

// Стандартный 5-польный формат: минуты часы дни месяцы дни_недели.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextDue вычисляет следующий запуск после from в timezone расписания.
// Невалидная timezone трактуется как UTC. Результат всегда в UTC.
func NextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := from.In(loc)

	switch {
	case sched.IsCron():
		spec, err := cronParser.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", sched.CronExpr, err)
		}
		return spec.Next(local).UTC(), nil
	case sched.IsInterval():
		return local.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil
	default:
		return time.Time{}, ErrNoTrigger
	}
}

// ValidateCronExpr проверяет cron-выражение.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// ValidateTimezone проверяет имя timezone из базы IANA.
func ValidateTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return nil
}

// IdempotencyKey возвращает ключ run для запуска schedule в момент due.
func IdempotencyKey(scheduleID fmt.Stringer, due time.Time) string {
	return fmt.Sprintf("%s_%d", scheduleID, due.Unix())
}
