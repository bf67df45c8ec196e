package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	account.Email = model.NormalizeEmail(account.Email)
	if _, taken := r.db.emails[account.Email]; taken {
		return apperrors.DuplicateEmail(nil)
	}
	if _, exists := r.db.accounts[account.ID]; exists {
		return apperrors.Conflict("record already exists", nil)
	}

	r.db.accounts[account.ID] = account.Clone()
	r.db.emails[account.Email] = account.ID
	r.db.stamp(account.ID)
	return nil
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	acc, ok := r.db.accounts[id]
	if !ok {
		return nil, apperrors.NotFound("account", nil)
	}
	return acc.Clone(), nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.emails[model.NormalizeEmail(email)]
	if !ok {
		return nil, apperrors.NotFound("account", nil)
	}
	return r.db.accounts[id].Clone(), nil
}

func (r *accountRepository) Update(ctx context.Context, account *model.Account) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.accounts[account.ID]
	if !ok {
		return apperrors.NotFound("account", nil)
	}

	updated := account.Clone()
	updated.Email = stored.Email
	updated.Role = stored.Role
	updated.PasswordHash = stored.PasswordHash
	updated.Status = stored.Clone().Status
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	account.UpdatedAt = updated.UpdatedAt

	r.db.accounts[account.ID] = updated
	return nil
}

func (r *accountRepository) UpdateDoctorStatus(ctx context.Context, id uuid.UUID, status model.DoctorStatus) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	acc, ok := r.db.accounts[id]
	if !ok || acc.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}
	acc.Status = &status
	acc.UpdatedAt = time.Now().UTC()
	return acc.Clone(), nil
}

func (r *accountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	acc, ok := r.db.accounts[id]
	if !ok {
		return apperrors.NotFound("account", nil)
	}

	active := 0
	var owned []uuid.UUID
	for apptID, appt := range r.db.appointments {
		if !appt.Involves(id) {
			continue
		}
		if appt.Status.Active() {
			active++
		}
		owned = append(owned, apptID)
	}
	if active > 0 {
		return apperrors.Conflict(fmt.Sprintf("account has %d pending or approved appointments", active), nil)
	}

	ownedSet := make(map[uuid.UUID]struct{}, len(owned))
	for _, apptID := range owned {
		ownedSet[apptID] = struct{}{}
	}
	for pid, p := range r.db.prescriptions {
		_, onOwned := ownedSet[p.AppointmentID]
		if onOwned || p.PatientID == id || p.DoctorID == id {
			delete(r.db.prescriptions, pid)
			delete(r.db.inserted, pid)
		}
	}
	for _, apptID := range owned {
		delete(r.db.appointments, apptID)
		delete(r.db.inserted, apptID)
	}
	for nid, n := range r.db.notes {
		if n.DoctorID == id || (n.PatientID != nil && *n.PatientID == id) {
			delete(r.db.notes, nid)
			delete(r.db.inserted, nid)
		}
	}
	for nid, n := range r.db.notifications {
		if n.UserID == id {
			delete(r.db.notifications, nid)
			delete(r.db.inserted, nid)
		}
	}
	delete(r.db.emails, acc.Email)
	delete(r.db.accounts, id)
	delete(r.db.inserted, id)
	return nil
}

func (r *accountRepository) List(ctx context.Context, filter model.AccountFilter) ([]*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	return r.collect(func(a *model.Account) bool {
		if filter.Role != "" && a.Role != filter.Role {
			return false
		}
		if filter.DoctorStatus != nil && (a.Status == nil || *a.Status != *filter.DoctorStatus) {
			return false
		}
		return true
	}), nil
}

func (r *accountRepository) ListPatientsOfDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	patients := make(map[uuid.UUID]struct{})
	for _, appt := range r.db.appointments {
		if appt.DoctorID == doctorID {
			patients[appt.PatientID] = struct{}{}
		}
	}
	return r.collect(func(a *model.Account) bool {
		_, ok := patients[a.ID]
		return ok && a.Role == model.RolePatient
	}), nil
}

// collect must be called with the lock held.
func (r *accountRepository) collect(keep func(*model.Account) bool) []*model.Account {
	out := []*model.Account{}
	for _, a := range r.db.accounts {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
