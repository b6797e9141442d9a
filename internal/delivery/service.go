package delivery

import (
	"context"

	"github.com/google/uuid"

	"github.com/frescora/pedidos-api/internal/storage"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// EnsureSlotsFor materializes the date's slots from its weekday
// template on first access. A weekday without template yields no slots.
func (s *Service) EnsureSlotsFor(ctx context.Context, date string) error {
	n, err := s.repo.SlotCount(ctx, date)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	weekday, err := isoWeekday(date)
	if err != nil {
		return err
	}
	templates, err := s.repo.TemplatesFor(ctx, weekday)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		return nil
	}

	slots := make([]Slot, 0, len(templates))
	for _, t := range templates {
		cap := t.Capacity
		if cap <= 0 {
			cap = DefaultCapacity
		}
		slots = append(slots, Slot{
			ID:        uuid.NewString(),
			Date:      date,
			StartTime: t.StartTime,
			EndTime:   t.EndTime,
			Capacity:  cap,
			ZoneID:    t.ZoneID,
		})
	}
	return s.repo.InsertSlots(ctx, slots)
}

func (s *Service) List(ctx context.Context, date string) ([]Slot, error) {
	if err := s.EnsureSlotsFor(ctx, date); err != nil {
		return nil, err
	}
	return s.repo.ListSlots(ctx, date)
}

func (s *Service) Get(ctx context.Context, id string) (*Slot, error) {
	return s.repo.GetSlot(ctx, id)
}

func (s *Service) Create(ctx context.Context, slot Slot) (*Slot, error) {
	slot.ID = uuid.NewString()
	if slot.Capacity <= 0 {
		slot.Capacity = DefaultCapacity
	}
	slot.Taken = 0
	if _, err := isoWeekday(slot.Date); err != nil {
		return nil, err
	}
	if err := s.repo.CreateSlot(ctx, &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Take claims one unit of slot capacity inside the caller's
// transaction. Cancellations do not release capacity.
func (s *Service) Take(ctx context.Context, tx storage.Tx, slotID string) error {
	ok, err := s.repo.Take(ctx, tx, slotID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := s.repo.GetSlot(ctx, slotID); err != nil {
		return err
	}
	return ErrSlotFull
}

// AllocateForDate materializes the date's slots and claims the first
// one with free capacity. A date with no slots yields nil without
// error; a date where every slot is full yields ErrSlotFull.
func (s *Service) AllocateForDate(ctx context.Context, tx storage.Tx, date string) (*Slot, error) {
	all, err := s.List(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	for i := range all {
		ok, err := s.repo.Take(ctx, tx, all[i].ID)
		if err != nil {
			return nil, err
		}
		if ok {
			return &all[i], nil
		}
	}
	return nil, ErrSlotFull
}

// UpsertWeekdaySlots replaces every template of the weekday.
func (s *Service) UpsertWeekdaySlots(ctx context.Context, weekdayName string, slots []DayTemplate) ([]DayTemplate, error) {
	if len(slots) == 0 {
		return nil, ErrEmptyTemplate
	}
	weekday, err := WeekdayNumber(weekdayName)
	if err != nil {
		return nil, err
	}
	ts := make([]DayTemplate, 0, len(slots))
	for _, t := range slots {
		if t.Capacity <= 0 {
			t.Capacity = DefaultCapacity
		}
		ts = append(ts, DayTemplate{
			ID:        uuid.NewString(),
			Weekday:   weekday,
			StartTime: t.StartTime,
			EndTime:   t.EndTime,
			Capacity:  t.Capacity,
			ZoneID:    t.ZoneID,
			Active:    true,
		})
	}
	if err := s.repo.ReplaceTemplates(ctx, weekday, ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (s *Service) WeekdaySlots(ctx context.Context, weekdayName string) ([]DayTemplate, error) {
	weekday, err := WeekdayNumber(weekdayName)
	if err != nil {
		return nil, err
	}
	return s.repo.TemplatesFor(ctx, weekday)
}
