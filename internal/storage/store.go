package storage

import (
	"context"
	"errors"
	"time"

	"dialog/internal/storage/zapadapter"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotExist       = errors.New("user does not exist")
	ErrMessageBadSender   = errors.New("bad sender id")
	ErrMessageBadReceiver = errors.New("bad receiver id")
	ErrMessageNotExist    = errors.New("message does not exist")
)

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Close releases the underlying connection pool
func (s *Store) Close() {
	s.db.Close()
}

// CreateUser creates user with pre-hashed password and returns its id.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	s.logger.Debugf("Creating user (%s)", username)

	var id int64
	sql := "insert into users (username, password_hash, created_at) values ($1, $2, $3) returning id"
	err := s.db.QueryRow(ctx, sql, username, passwordHash, time.Now()).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				return 0, ErrUserExists
			}
		}
		return 0, err
	}

	s.logger.Debugf("Created user (%s) with id %d", username, id)

	return id, nil
}

// UserByID returns user projection without credentials
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	sql := "select id, trim(username), is_online, last_seen, created_at from users where id = $1"

	var u User
	var lastSeen pgtype.Timestamptz
	err := s.db.QueryRow(ctx, sql, id).Scan(&u.ID, &u.Username, &u.IsOnline, &lastSeen, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	if lastSeen.Status == pgtype.Present {
		t := lastSeen.Time
		u.LastSeen = &t
	}

	return u, nil
}

// UserByUsername returns user projection together with stored password hash.
// The hash is returned separately so it never travels inside the User entity.
func (s *Store) UserByUsername(ctx context.Context, username string) (User, string, error) {
	sql := "select id, trim(username), password_hash, is_online, last_seen, created_at from users where username = $1"

	var u User
	var hash string
	var lastSeen pgtype.Timestamptz
	err := s.db.QueryRow(ctx, sql, username).Scan(&u.ID, &u.Username, &hash, &u.IsOnline, &lastSeen, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, "", ErrUserNotExist
		}
		return User{}, "", err
	}

	if lastSeen.Status == pgtype.Present {
		t := lastSeen.Time
		u.LastSeen = &t
	}

	return u, hash, nil
}

// CreateMessage persists a direct message with caller-supplied creation time and returns it.
// createdAt comes from the delivery pipeline clock, never from a client.
func (s *Store) CreateMessage(ctx context.Context, sender, receiver int64, content string, createdAt time.Time) (Message, error) {
	s.logger.Debugf("Creating message from user (id: %d) to user (id: %d)", sender, receiver)

	var id int64
	sql := "insert into messages (sender_id, receiver_id, content, created_at) values ($1, $2, $3, $4) returning id"
	err := s.db.QueryRow(ctx, sql, sender, receiver, content, createdAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.ForeignKeyViolation:
				switch pgErr.ConstraintName {
				case "messages_sender_id_fkey":
					return Message{}, ErrMessageBadSender
				case "messages_receiver_id_fkey":
					return Message{}, ErrMessageBadReceiver
				default:
					return Message{}, err
				}
			}
		}
		return Message{}, err
	}

	return Message{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		CreatedAt: createdAt,
	}, nil
}

// MarkDelivered flips the delivered flag of a message
func (s *Store) MarkDelivered(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "update messages set delivered = true where id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotExist
	}
	return nil
}

// SetPresence writes is_online and last_seen for a user
func (s *Store) SetPresence(ctx context.Context, userID int64, online bool, lastSeen time.Time) error {
	tag, err := s.db.Exec(ctx, "update users set is_online = $2, last_seen = $3 where id = $1", userID, online, lastSeen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotExist
	}
	return nil
}

// MessagesBetween returns the full exchange between two users with all fields,
// sorted by message creation time (from earliest to latest)
func (s *Store) MessagesBetween(ctx context.Context, userOne, userTwo int64) ([]Message, error) {
	s.logger.Debugf("Retrieving messages between users (ids: %d, %d)", userOne, userTwo)

	sql := `select messages.id,
				   messages.sender_id,
				   messages.receiver_id,
				   messages.content,
				   messages.delivered,
				   messages.is_read,
				   messages.created_at
			  from messages
			 where (sender_id = $1 and receiver_id = $2)
				or (sender_id = $2 and receiver_id = $1)
			 order by created_at asc`

	rows, err := s.db.Query(ctx, sql, userOne, userTwo)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		err = rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Content, &m.Delivered, &m.Read, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d messages", len(messages))

	return messages, nil
}

// Contacts returns every user other than the requester with presence fields,
// sorted by username
func (s *Store) Contacts(ctx context.Context, userID int64) ([]User, error) {
	s.logger.Debugf("Retrieving contacts for user (id: %d)", userID)

	// check if requester exists
	var i int8
	sql := "select 1 from users where id = $1"
	err := s.db.QueryRow(ctx, sql, userID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotExist
		}
		return nil, err
	}

	sql = `select id, trim(username), is_online, last_seen, created_at
			 from users
			where id != $1
			order by username asc`

	rows, err := s.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var lastSeen pgtype.Timestamptz
		err = rows.Scan(&u.ID, &u.Username, &u.IsOnline, &lastSeen, &u.CreatedAt)
		if err != nil {
			return nil, err
		}
		if lastSeen.Status == pgtype.Present {
			t := lastSeen.Time
			u.LastSeen = &t
		}
		users = append(users, u)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d contacts", len(users))

	return users, nil
}
