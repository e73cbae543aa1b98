package store

import (
	"context"
	"fmt"

	"clinicpos/m/domain"
)

const patientColumns = `id, first_name, last_name, phone, email, address, birth_date, notes, created_at, updated_at`

func (s *Store) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	patients := []domain.Patient{}
	if err := s.db.SelectContext(ctx, &patients, `SELECT `+patientColumns+` FROM patients ORDER BY first_name, last_name, id`); err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return patients, nil
}

func (s *Store) GetPatient(ctx context.Context, id int64) (domain.Patient, error) {
	var p domain.Patient
	if err := s.db.GetContext(ctx, &p, s.q(`SELECT `+patientColumns+` FROM patients WHERE id = ?`), id); err != nil {
		return domain.Patient{}, notFound(err)
	}
	return p, nil
}

func (s *Store) CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	now := s.timestamp()
	p.CreatedAt, p.UpdatedAt = now, now
	err := s.db.QueryRowxContext(ctx, s.q(`INSERT INTO patients (first_name, last_name, phone, email, address, birth_date, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		p.FirstName, p.LastName, p.Phone, p.Email, p.Address, p.BirthDate, p.Notes, now, now).Scan(&p.ID)
	if err != nil {
		return domain.Patient{}, fmt.Errorf("insert patient: %w", err)
	}
	return p, nil
}

// UpdatePatient rewrites every mutable field; id and created_at never change.
func (s *Store) UpdatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE patients SET first_name = ?, last_name = ?, phone = ?, email = ?, address = ?, birth_date = ?, notes = ?, updated_at = ? WHERE id = ?`),
		p.FirstName, p.LastName, p.Phone, p.Email, p.Address, p.BirthDate, p.Notes, s.timestamp(), p.ID)
	if err != nil {
		return domain.Patient{}, fmt.Errorf("update patient %d: %w", p.ID, err)
	}
	if err := requireAffected(res); err != nil {
		return domain.Patient{}, err
	}
	return s.GetPatient(ctx, p.ID)
}

func (s *Store) DeletePatient(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE sales SET patient_id = NULL WHERE patient_id = ?`), id); err != nil {
		return fmt.Errorf("detach sales from patient %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM patients WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete patient %d: %w", id, err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}
