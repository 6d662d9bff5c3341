package loans

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/librarium/librarium/internal/platform/db"
)

// Repository persists policies and loans in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const policyColumns = `id, description, days, logical_operator, is_default, priority`

func scanPolicy(row pgx.Row) (Policy, error) {
	var p Policy
	err := row.Scan(&p.ID, &p.Description, &p.Days, &p.LogicalOperator, &p.IsDefault, &p.Priority)
	return p, err
}

// ListPolicies returns every policy with its steps and conditions, ordered by
// priority then id.
func (r *Repository) ListPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+policyColumns+` FROM loan_policies ORDER BY priority, id`)
	if err != nil {
		return nil, fmt.Errorf("loans: list policies: %w", err)
	}
	defer rows.Close()

	var policies []Policy
	index := make(map[int64]int)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("loans: scan policy: %w", err)
		}
		index[p.ID] = len(policies)
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachSteps(ctx, policies, index); err != nil {
		return nil, err
	}
	if err := r.attachConditions(ctx, policies, index); err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *Repository) attachSteps(ctx context.Context, policies []Policy, index map[int64]int) error {
	rows, err := r.pool.Query(ctx, `SELECT id, policy_id, description, days, step_order FROM policy_renewal_steps ORDER BY policy_id, step_order, id`)
	if err != nil {
		return fmt.Errorf("loans: list renewal steps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s RenewalStep
		if err := rows.Scan(&s.ID, &s.PolicyID, &s.Description, &s.Days, &s.Order); err != nil {
			return fmt.Errorf("loans: scan renewal step: %w", err)
		}
		if i, ok := index[s.PolicyID]; ok {
			policies[i].Steps = append(policies[i].Steps, s)
		}
	}
	return rows.Err()
}

func (r *Repository) attachConditions(ctx context.Context, policies []Policy, index map[int64]int) error {
	rows, err := r.pool.Query(ctx, `SELECT policy_id, dimension, ref_id FROM policy_conditions ORDER BY policy_id, dimension, ref_id`)
	if err != nil {
		return fmt.Errorf("loans: list conditions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var policyID int64
		var dim, ref string
		if err := rows.Scan(&policyID, &dim, &ref); err != nil {
			return fmt.Errorf("loans: scan condition: %w", err)
		}
		i, ok := index[policyID]
		if !ok {
			continue
		}
		if policies[i].Conditions == nil {
			policies[i].Conditions = make(map[Dimension][]string)
		}
		policies[i].Conditions[Dimension(dim)] = append(policies[i].Conditions[Dimension(dim)], ref)
	}
	return rows.Err()
}

// GetPolicy fetches one policy with its steps and conditions.
func (r *Repository) GetPolicy(ctx context.Context, id int64) (Policy, error) {
	p, err := scanPolicy(r.pool.QueryRow(ctx, `SELECT `+policyColumns+` FROM loan_policies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Policy{}, ErrPolicyNotFound
	}
	if err != nil {
		return Policy{}, fmt.Errorf("loans: get policy: %w", err)
	}
	policies := []Policy{p}
	index := map[int64]int{p.ID: 0}
	if err := r.attachSteps(ctx, policies, index); err != nil {
		return Policy{}, err
	}
	if err := r.attachConditions(ctx, policies, index); err != nil {
		return Policy{}, err
	}
	return policies[0], nil
}

// CreatePolicy inserts a policy with its steps and conditions.
func (r *Repository) CreatePolicy(ctx context.Context, p Policy) (Policy, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO loan_policies (description, days, logical_operator, is_default, priority)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			p.Description, p.Days, p.LogicalOperator, p.IsDefault, p.Priority).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("loans: insert policy: %w", err)
		}
		return r.insertPolicyChildren(ctx, tx, &p)
	})
	if err != nil {
		return Policy{}, err
	}
	return p, nil
}

// UpdatePolicy rewrites a policy, replacing its steps and conditions. A
// policy whose steps back applied renewals cannot be rewritten.
func (r *Repository) UpdatePolicy(ctx context.Context, p Policy) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE loan_policies SET description = $2, days = $3, logical_operator = $4, is_default = $5, priority = $6 WHERE id = $1`,
			p.ID, p.Description, p.Days, p.LogicalOperator, p.IsDefault, p.Priority)
		if err != nil {
			return fmt.Errorf("loans: update policy: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPolicyNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM policy_renewal_steps WHERE policy_id = $1`, p.ID); err != nil {
			return fmt.Errorf("loans: clear renewal steps: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM policy_conditions WHERE policy_id = $1`, p.ID); err != nil {
			return fmt.Errorf("loans: clear conditions: %w", err)
		}
		return r.insertPolicyChildren(ctx, tx, &p)
	})
	if isForeignKeyViolation(err) {
		return ErrPolicyInUse
	}
	return err
}

func (r *Repository) insertPolicyChildren(ctx context.Context, tx pgx.Tx, p *Policy) error {
	for i := range p.Steps {
		step := &p.Steps[i]
		step.PolicyID = p.ID
		err := tx.QueryRow(ctx, `INSERT INTO policy_renewal_steps (policy_id, description, days, step_order)
VALUES ($1, $2, $3, $4) RETURNING id`,
			p.ID, step.Description, step.Days, step.Order).Scan(&step.ID)
		if err != nil {
			return fmt.Errorf("loans: insert renewal step: %w", err)
		}
	}
	for _, dim := range Dimensions {
		for _, ref := range p.Conditions[dim] {
			if _, err := tx.Exec(ctx, `INSERT INTO policy_conditions (policy_id, dimension, ref_id) VALUES ($1, $2, $3)`,
				p.ID, string(dim), ref); err != nil {
				return fmt.Errorf("loans: insert condition: %w", err)
			}
		}
	}
	return nil
}

// DeletePolicy removes a policy. Policies referenced by loans are kept.
func (r *Repository) DeletePolicy(ctx context.Context, id int64) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM policy_conditions WHERE policy_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM policy_renewal_steps WHERE policy_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM loan_policies WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrPolicyNotFound
		}
		return nil
	})
	if isForeignKeyViolation(err) {
		return ErrPolicyInUse
	}
	if err != nil && !errors.Is(err, ErrPolicyNotFound) {
		return fmt.Errorf("loans: delete policy: %w", err)
	}
	return err
}

const loanColumns = `l.id, l.specimen_id, l.user_id, l.policy_id, l.loan_date, l.return_date`

func scanLoan(row pgx.Row) (Loan, int64, error) {
	var l Loan
	var policyID int64
	err := row.Scan(&l.ID, &l.SpecimenID, &l.UserID, &policyID, &l.Date, &l.ReturnDate)
	return l, policyID, err
}

// GetLoan fetches one loan with its policy and applied renewals.
func (r *Repository) GetLoan(ctx context.Context, id int64) (Loan, error) {
	l, policyID, err := scanLoan(r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans l WHERE l.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, ErrLoanNotFound
	}
	if err != nil {
		return Loan{}, fmt.Errorf("loans: get loan: %w", err)
	}
	return r.hydrate(ctx, r.pool, l, policyID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) hydrate(ctx context.Context, q querier, l Loan, policyID int64) (Loan, error) {
	p, err := scanPolicy(q.QueryRow(ctx, `SELECT `+policyColumns+` FROM loan_policies WHERE id = $1`, policyID))
	if err != nil {
		return Loan{}, fmt.Errorf("loans: load loan policy: %w", err)
	}
	rows, err := q.Query(ctx, `SELECT s.id, s.policy_id, s.description, s.days, s.step_order FROM policy_renewal_steps s WHERE s.policy_id = $1 ORDER BY s.step_order, s.id`, policyID)
	if err != nil {
		return Loan{}, fmt.Errorf("loans: load policy steps: %w", err)
	}
	steps := make(map[int64]RenewalStep)
	for rows.Next() {
		var s RenewalStep
		if err := rows.Scan(&s.ID, &s.PolicyID, &s.Description, &s.Days, &s.Order); err != nil {
			rows.Close()
			return Loan{}, fmt.Errorf("loans: scan policy step: %w", err)
		}
		p.Steps = append(p.Steps, s)
		steps[s.ID] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Loan{}, err
	}
	l.Policy = p

	rows, err = q.Query(ctx, `SELECT step_id FROM loan_renewals WHERE loan_id = $1 ORDER BY position`, l.ID)
	if err != nil {
		return Loan{}, fmt.Errorf("loans: load renewals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stepID int64
		if err := rows.Scan(&stepID); err != nil {
			return Loan{}, fmt.Errorf("loans: scan renewal: %w", err)
		}
		step, ok := steps[stepID]
		if !ok {
			return Loan{}, fmt.Errorf("loans: renewal references unknown step %d", stepID)
		}
		l.Renewals = append(l.Renewals, step)
	}
	return l, rows.Err()
}

// ListLoans lists loans matching the filter, newest first.
func (r *Repository) ListLoans(ctx context.Context, filter ListFilter) ([]Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans l WHERE 1=1`
	var args []any
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += ` AND l.user_id = $` + strconv.Itoa(len(args))
	}
	if filter.SpecimenID != nil {
		args = append(args, *filter.SpecimenID)
		query += ` AND l.specimen_id = $` + strconv.Itoa(len(args))
	}
	if filter.OnlyOpen {
		query += ` AND l.return_date IS NULL`
	}
	query += ` ORDER BY l.loan_date DESC, l.id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loans: list loans: %w", err)
	}
	defer rows.Close()

	var loans []Loan
	var policyIDs []int64
	for rows.Next() {
		l, policyID, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("loans: scan loan: %w", err)
		}
		loans = append(loans, l)
		policyIDs = append(policyIDs, policyID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range loans {
		loans[i], err = r.hydrate(ctx, r.pool, loans[i], policyIDs[i])
		if err != nil {
			return nil, err
		}
	}
	return loans, nil
}

// SpecimenAvailable reports whether the specimen has no open loan.
func (r *Repository) SpecimenAvailable(ctx context.Context, specimenID int64) (bool, error) {
	var onLoan bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loans WHERE specimen_id = $1 AND return_date IS NULL)`, specimenID).Scan(&onLoan)
	if err != nil {
		return false, fmt.Errorf("loans: specimen availability: %w", err)
	}
	return !onLoan, nil
}

// CreateLoan inserts a loan while holding a lock on the specimen row, so two
// concurrent checkouts of the same specimen cannot both succeed.
func (r *Repository) CreateLoan(ctx context.Context, l Loan) (Loan, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if l.SpecimenID != nil {
			var locked int64
			err := tx.QueryRow(ctx, `SELECT id FROM specimens WHERE id = $1 FOR UPDATE`, *l.SpecimenID).Scan(&locked)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("loans: specimen %d not found", *l.SpecimenID)
			}
			if err != nil {
				return fmt.Errorf("loans: lock specimen: %w", err)
			}
			var onLoan bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loans WHERE specimen_id = $1 AND return_date IS NULL)`, *l.SpecimenID).Scan(&onLoan); err != nil {
				return fmt.Errorf("loans: check open loan: %w", err)
			}
			if onLoan {
				return errSpecimenOnLoan
			}
		}
		return tx.QueryRow(ctx, `INSERT INTO loans (specimen_id, user_id, policy_id, loan_date)
VALUES ($1, $2, $3, $4) RETURNING id`,
			l.SpecimenID, l.UserID, l.Policy.ID, l.Date).Scan(&l.ID)
	})
	if err != nil {
		return Loan{}, err
	}
	return l, nil
}

// UpdateLoan runs fn against the loan under a row lock and persists the
// renewal list and return date it leaves behind.
func (r *Repository) UpdateLoan(ctx context.Context, id int64, fn func(l *Loan) error) (Loan, error) {
	var updated Loan
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		l, policyID, err := scanLoan(tx.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans l WHERE l.id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLoanNotFound
		}
		if err != nil {
			return fmt.Errorf("loans: lock loan: %w", err)
		}
		l, err = r.hydrate(ctx, tx, l, policyID)
		if err != nil {
			return err
		}

		if err := fn(&l); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE loans SET return_date = $2 WHERE id = $1`, l.ID, l.ReturnDate); err != nil {
			return fmt.Errorf("loans: update loan: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM loan_renewals WHERE loan_id = $1`, l.ID); err != nil {
			return fmt.Errorf("loans: clear renewals: %w", err)
		}
		for i, step := range l.Renewals {
			if _, err := tx.Exec(ctx, `INSERT INTO loan_renewals (loan_id, step_id, position) VALUES ($1, $2, $3)`, l.ID, step.ID, i); err != nil {
				return fmt.Errorf("loans: insert renewal: %w", err)
			}
		}
		updated = l
		return nil
	})
	if err != nil {
		return Loan{}, err
	}
	return updated, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
