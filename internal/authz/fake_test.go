package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// fakeDir is an in-memory Directory and PromotionStore.
type fakeDir struct {
	regions     map[uuid.UUID]bool
	chapters    map[uuid.UUID]*uuid.UUID
	memberships map[uuid.UUID]map[uuid.UUID]MembershipRole
	users       map[uuid.UUID]Subject

	// err, when set, is returned by every read.
	err error
	// upsertErr, when set, fails UpsertMembership after SetRole has run.
	upsertErr error
	// locked records LockSubject calls.
	locked []uuid.UUID
}

func newFakeDir() *fakeDir {
	return &fakeDir{
		regions:     map[uuid.UUID]bool{},
		chapters:    map[uuid.UUID]*uuid.UUID{},
		memberships: map[uuid.UUID]map[uuid.UUID]MembershipRole{},
		users:       map[uuid.UUID]Subject{},
	}
}

func (f *fakeDir) addRegion() uuid.UUID {
	id := uuid.New()
	f.regions[id] = true
	return id
}

func (f *fakeDir) addChapter(region *uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.chapters[id] = region
	return id
}

func (f *fakeDir) addUser(role Role, managed *uuid.UUID) Subject {
	s := Subject{ID: uuid.New(), Role: role, ManagedRegionID: managed}
	f.users[s.ID] = s
	return s
}

func (f *fakeDir) join(userID, chapterID uuid.UUID, role MembershipRole) {
	if f.memberships[userID] == nil {
		f.memberships[userID] = map[uuid.UUID]MembershipRole{}
	}
	f.memberships[userID][chapterID] = role
}

func (f *fakeDir) ChapterRegion(_ context.Context, chapterID uuid.UUID) (*uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	region, ok := f.chapters[chapterID]
	if !ok {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, ErrTargetNotFound)
	}
	return region, nil
}

func (f *fakeDir) MembershipRole(_ context.Context, userID, chapterID uuid.UUID) (MembershipRole, error) {
	if f.err != nil {
		return "", f.err
	}
	role, ok := f.memberships[userID][chapterID]
	if !ok {
		return "", ErrTargetNotFound
	}
	return role, nil
}

func (f *fakeDir) Memberships(_ context.Context, userID uuid.UUID) ([]MembershipRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []MembershipRef
	for chapterID, role := range f.memberships[userID] {
		out = append(out, MembershipRef{ChapterID: chapterID, RegionID: f.chapters[chapterID], Role: role})
	}
	return out, nil
}

func (f *fakeDir) RegionIDs(context.Context) ([]uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []uuid.UUID
	for id := range f.regions {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeDir) RegionExists(_ context.Context, regionID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.regions[regionID], nil
}

func (f *fakeDir) Subject(_ context.Context, userID uuid.UUID) (Subject, error) {
	s, ok := f.users[userID]
	if !ok {
		return Subject{}, ErrTargetNotFound
	}
	return s, nil
}

func (f *fakeDir) LockSubject(ctx context.Context, userID uuid.UUID) (Subject, error) {
	f.locked = append(f.locked, userID)
	return f.Subject(ctx, userID)
}

func (f *fakeDir) SetRole(_ context.Context, userID uuid.UUID, role Role, managed *uuid.UUID) error {
	s, ok := f.users[userID]
	if !ok {
		return ErrTargetNotFound
	}
	s.Role = role
	s.ManagedRegionID = managed
	f.users[userID] = s
	return nil
}

func (f *fakeDir) UpsertMembership(_ context.Context, userID, chapterID uuid.UUID, role MembershipRole) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.join(userID, chapterID, role)
	return nil
}

// InTx runs fn against a copy of the state and swaps it in only on success.
func (f *fakeDir) InTx(ctx context.Context, fn func(tx PromotionTx) error) error {
	tx := f.clone()
	if err := fn(tx); err != nil {
		f.locked = append(f.locked, tx.locked...)
		return err
	}
	f.users = tx.users
	f.memberships = tx.memberships
	f.locked = append(f.locked, tx.locked...)
	return nil
}

func (f *fakeDir) clone() *fakeDir {
	c := newFakeDir()
	c.err = f.err
	c.upsertErr = f.upsertErr
	for k, v := range f.regions {
		c.regions[k] = v
	}
	for k, v := range f.chapters {
		c.chapters[k] = v
	}
	for k, v := range f.users {
		c.users[k] = v
	}
	for u, m := range f.memberships {
		for ch, r := range m {
			c.join(u, ch, r)
		}
	}
	return c
}

var errStoreDown = errors.New("store down")

func ptr(id uuid.UUID) *uuid.UUID { return &id }
