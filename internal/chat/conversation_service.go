package chat

import (
	"context"
	"errors"
	"fmt"
	"log"

	"campus-chat/internal/models"
	"campus-chat/internal/repositories"
)

// courseGroupCap bounds course-group size at creation time: the joining
// student plus up to 19 seeded classmates.
const courseGroupCap = 20

// ConversationService implements the conversation directory operations with
// server-side authorization. It mutates through the repositories and fans
// results out through the Notifier, so the websocket and HTTP surfaces stay
// consistent.
type ConversationService struct {
	convRepo repositories.ConversationRepository
	msgRepo  repositories.MessageRepository
	userRepo repositories.UserRepository
	catalog  repositories.CourseCatalog
	notifier Notifier
}

// NewConversationService constructs a ConversationService.
func NewConversationService(
	convRepo repositories.ConversationRepository,
	msgRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	catalog repositories.CourseCatalog,
	notifier Notifier,
) *ConversationService {
	return &ConversationService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		catalog:  catalog,
		notifier: notifier,
	}
}

// CreateGroupParams describes an explicit group/broadcast creation request.
type CreateGroupParams struct {
	Kind           models.ConversationKind
	CreatorID      int
	Name           string
	Description    string
	AllowedToPost  string
	ParticipantIDs []int
}

// StartDirect finds or creates the single direct conversation between two
// users. Idempotent in either argument order.
func (s *ConversationService) StartDirect(ctx context.Context, userA, userB int) (models.ConversationView, error) {
	if userA == userB {
		return models.ConversationView{}, fmt.Errorf("%w: cannot start a conversation with yourself", ErrValidation)
	}
	if err := s.requireUsers(ctx, []int{userA, userB}); err != nil {
		return models.ConversationView{}, err
	}

	conv, err := s.convRepo.FindOrCreateDirect(ctx, userA, userB)
	if err != nil {
		return models.ConversationView{}, err
	}
	return s.view(ctx, conv)
}

// CreateGroup creates a group or broadcast conversation. The creator is
// forced into participants and admins; every participant is notified and
// their live connections are joined to the new room immediately.
func (s *ConversationService) CreateGroup(ctx context.Context, params CreateGroupParams) (models.ConversationView, error) {
	if params.Kind != models.KindGroup && params.Kind != models.KindBroadcast {
		return models.ConversationView{}, fmt.Errorf("%w: kind must be group or broadcast", ErrValidation)
	}
	if params.Name == "" {
		return models.ConversationView{}, fmt.Errorf("%w: name is required", ErrValidation)
	}

	participantIDs := dedupeWith(params.CreatorID, params.ParticipantIDs)
	if len(participantIDs) < 2 {
		return models.ConversationView{}, fmt.Errorf("%w: at least one participant besides the creator is required", ErrValidation)
	}
	if err := s.requireUsers(ctx, participantIDs); err != nil {
		return models.ConversationView{}, err
	}

	conv, err := s.convRepo.Create(ctx, repositories.CreateConversationParams{
		Kind:           params.Kind,
		Name:           params.Name,
		Description:    params.Description,
		AllowedToPost:  params.AllowedToPost,
		CreatorID:      params.CreatorID,
		ParticipantIDs: participantIDs,
	})
	if err != nil {
		return models.ConversationView{}, err
	}

	view, err := s.view(ctx, conv)
	if err != nil {
		return models.ConversationView{}, err
	}

	for _, userID := range participantIDs {
		s.notifier.ToUser(userID, models.ConversationNew{Conversation: view})
		s.notifier.JoinConversation(userID, conv.ID)
	}
	return view, nil
}

// Get returns the conversation view for a participant.
func (s *ConversationService) Get(ctx context.Context, conversationID, viewerID int) (models.ConversationView, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return models.ConversationView{}, err
	}
	if err := s.requireParticipant(ctx, conversationID, viewerID); err != nil {
		return models.ConversationView{}, err
	}
	return s.view(ctx, conv)
}

// Update patches name/description/avatar. Group and broadcast details are
// admin-only; direct conversations accept updates from either participant.
func (s *ConversationService) Update(ctx context.Context, conversationID, requesterID int, name, description, avatar *string) (models.ConversationView, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return models.ConversationView{}, err
	}

	if conv.Kind == models.KindGroup || conv.Kind == models.KindBroadcast {
		admin, err := s.convRepo.IsAdmin(ctx, conversationID, requesterID)
		if err != nil {
			return models.ConversationView{}, err
		}
		if !admin {
			return models.ConversationView{}, fmt.Errorf("%w: only admins can update conversation details", ErrNotAuthorized)
		}
	} else if err := s.requireParticipant(ctx, conversationID, requesterID); err != nil {
		return models.ConversationView{}, err
	}

	if err := s.convRepo.UpdateDetails(ctx, conversationID, name, description, avatar); err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.ConversationView{}, fmt.Errorf("%w: conversation", ErrNotFound)
		}
		return models.ConversationView{}, err
	}

	conv, err = s.getConversation(ctx, conversationID)
	if err != nil {
		return models.ConversationView{}, err
	}
	view, err := s.view(ctx, conv)
	if err != nil {
		return models.ConversationView{}, err
	}
	s.notifier.ToConversation(conversationID, models.ConversationUpdated{Conversation: view})
	return view, nil
}

// AddParticipants adds members to a group. Admin-only; adding an existing
// member is a no-op. Broadcast membership is not managed through this
// operation, so anything but a group reads as not found.
func (s *ConversationService) AddParticipants(ctx context.Context, conversationID, requesterID int, userIDs []int) (models.ConversationView, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return models.ConversationView{}, err
	}
	if conv.Kind != models.KindGroup {
		return models.ConversationView{}, fmt.Errorf("%w: group conversation", ErrNotFound)
	}

	admin, err := s.convRepo.IsAdmin(ctx, conversationID, requesterID)
	if err != nil {
		return models.ConversationView{}, err
	}
	if !admin {
		return models.ConversationView{}, fmt.Errorf("%w: only admins can add participants", ErrNotAuthorized)
	}

	if len(userIDs) == 0 {
		return models.ConversationView{}, fmt.Errorf("%w: no users to add", ErrValidation)
	}
	if err := s.requireUsers(ctx, userIDs); err != nil {
		return models.ConversationView{}, err
	}

	if err := s.convRepo.AddParticipants(ctx, conversationID, userIDs); err != nil {
		return models.ConversationView{}, err
	}

	view, err := s.view(ctx, conv)
	if err != nil {
		return models.ConversationView{}, err
	}
	s.notifier.ToConversation(conversationID, models.ConversationUpdated{Conversation: view})
	for _, userID := range userIDs {
		s.notifier.JoinConversation(userID, conversationID)
	}
	return view, nil
}

// RemoveParticipant removes a member (admin) or leaves (self). The target's
// admin flag is removed with the membership row, and their live connections
// are evicted from the room immediately.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID, requesterID, targetUserID int) error {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Kind != models.KindGroup {
		return fmt.Errorf("%w: group conversation", ErrNotFound)
	}

	if requesterID != targetUserID {
		admin, err := s.convRepo.IsAdmin(ctx, conversationID, requesterID)
		if err != nil {
			return err
		}
		if !admin {
			return fmt.Errorf("%w: only admins can remove participants", ErrNotAuthorized)
		}
	}

	if err := s.convRepo.RemoveParticipant(ctx, conversationID, targetUserID); err != nil {
		return err
	}

	s.notifier.LeaveConversation(targetUserID, conversationID)
	s.notifier.ToConversation(conversationID, models.ParticipantLeft{
		ConversationID: conversationID,
		UserID:         targetUserID,
	})
	return nil
}

// ToggleArchive flips the viewer's archive flag. Archival is per viewer,
// never global.
func (s *ConversationService) ToggleArchive(ctx context.Context, conversationID, userID int) (bool, error) {
	if _, err := s.getConversation(ctx, conversationID); err != nil {
		return false, err
	}
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return false, err
	}
	return s.convRepo.ToggleArchive(ctx, conversationID, userID)
}

// List returns the viewer's conversations, most recently active first, with
// unread counts and participant projections.
func (s *ConversationService) List(ctx context.Context, userID int, opts models.ConversationListOptions) ([]models.ConversationView, error) {
	summaries, err := s.convRepo.ListForUser(ctx, userID, opts)
	if err != nil {
		return nil, err
	}

	views := make([]models.ConversationView, 0, len(summaries))
	for _, summary := range summaries {
		view, err := s.view(ctx, summary.Conversation)
		if err != nil {
			return nil, err
		}
		view.UnreadCount = summary.UnreadCount
		view.Archived = summary.Archived
		views = append(views, view)
	}
	return views, nil
}

// JoinCourseGroupResult reports what JoinCourseGroup did.
type JoinCourseGroupResult struct {
	Conversation  models.ConversationView
	Created       bool
	AlreadyMember bool
}

// JoinCourseGroup joins the requester to the course group for their
// university, creating it on first join seeded with classmates found through
// uploaded schedules. Idempotent: an existing member gets the same
// conversation back.
func (s *ConversationService) JoinCourseGroup(ctx context.Context, userID int, courseCode, courseName, university string) (JoinCourseGroupResult, error) {
	if courseCode == "" || university == "" {
		return JoinCourseGroupResult{}, fmt.Errorf("%w: courseCode and university are required", ErrValidation)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return JoinCourseGroupResult{}, fmt.Errorf("%w: user", ErrNotFound)
		}
		return JoinCourseGroupResult{}, err
	}
	if user.University != university {
		return JoinCourseGroupResult{}, fmt.Errorf("%w: can only join groups for your own university", ErrNotAuthorized)
	}

	conv, err := s.convRepo.FindCourseGroup(ctx, courseCode, university)
	if err == nil {
		return s.joinExistingCourseGroup(ctx, conv, user)
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return JoinCourseGroupResult{}, err
	}

	if courseName == "" {
		if course, err := s.catalog.Lookup(ctx, courseCode, university); err == nil {
			courseName = course.CourseName
		}
	}

	classmates, err := s.userRepo.ClassmatesForCourse(ctx, courseCode, university, userID, courseGroupCap-1)
	if err != nil {
		return JoinCourseGroupResult{}, err
	}
	participantIDs := dedupeWith(userID, classmates)

	description := fmt.Sprintf("Group chat for %s at %s", courseCode, university)
	if courseName != "" {
		description = fmt.Sprintf("Group chat for %s: %s at %s", courseCode, courseName, university)
	}

	conv, err = s.convRepo.Create(ctx, repositories.CreateConversationParams{
		Kind:           models.KindGroup,
		Name:           fmt.Sprintf("%s - %s", courseCode, university),
		Description:    description,
		CreatorID:      userID,
		ParticipantIDs: participantIDs,
		CourseCode:     courseCode,
		CourseName:     courseName,
		University:     university,
	})
	if err != nil {
		return JoinCourseGroupResult{}, err
	}

	view, err := s.view(ctx, conv)
	if err != nil {
		return JoinCourseGroupResult{}, err
	}
	for _, participantID := range participantIDs {
		s.notifier.ToUser(participantID, models.ConversationNew{Conversation: view})
		s.notifier.JoinConversation(participantID, conv.ID)
	}
	return JoinCourseGroupResult{Conversation: view, Created: true}, nil
}

func (s *ConversationService) joinExistingCourseGroup(ctx context.Context, conv models.Conversation, user models.User) (JoinCourseGroupResult, error) {
	member, err := s.convRepo.IsParticipant(ctx, conv.ID, user.ID)
	if err != nil {
		return JoinCourseGroupResult{}, err
	}
	if member {
		view, err := s.view(ctx, conv)
		if err != nil {
			return JoinCourseGroupResult{}, err
		}
		return JoinCourseGroupResult{Conversation: view, AlreadyMember: true}, nil
	}

	if err := s.convRepo.AddParticipants(ctx, conv.ID, []int{user.ID}); err != nil {
		return JoinCourseGroupResult{}, err
	}

	s.notifier.ToConversation(conv.ID, models.ParticipantJoined{
		ConversationID: conv.ID,
		User:           user.Summary(),
	})
	s.notifier.JoinConversation(user.ID, conv.ID)

	view, err := s.view(ctx, conv)
	if err != nil {
		return JoinCourseGroupResult{}, err
	}
	return JoinCourseGroupResult{Conversation: view}, nil
}

// ConversationIDsFor lists the ids of every conversation the user belongs
// to; used by the gateway to subscribe fresh connections.
func (s *ConversationService) ConversationIDsFor(ctx context.Context, userID int) ([]int, error) {
	return s.convRepo.IDsForUser(ctx, userID)
}

// IsParticipant is the authorization predicate used before ephemeral relays.
// A missing conversation reads as false, never as an error.
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	return s.convRepo.IsParticipant(ctx, conversationID, userID)
}

// view assembles the read-side projection: participants, admin ids and the
// cached last message, joined at read time and never persisted.
func (s *ConversationService) view(ctx context.Context, conv models.Conversation) (models.ConversationView, error) {
	participants, err := s.convRepo.Participants(ctx, conv.ID)
	if err != nil {
		return models.ConversationView{}, err
	}

	ids := make([]int, 0, len(participants))
	adminIDs := make([]int, 0)
	for _, p := range participants {
		ids = append(ids, p.UserID)
		if p.IsAdmin {
			adminIDs = append(adminIDs, p.UserID)
		}
	}

	users, err := s.userRepo.BulkByIDs(ctx, ids)
	if err != nil {
		return models.ConversationView{}, err
	}
	summaryByID := make(map[int]models.UserSummary, len(users))
	for _, u := range users {
		summaryByID[u.ID] = u.Summary()
	}

	summaries := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		if summary, ok := summaryByID[id]; ok {
			summaries = append(summaries, summary)
		}
	}

	view := models.ConversationView{
		Conversation: conv,
		Participants: summaries,
		AdminIDs:     adminIDs,
	}

	if conv.LastMessageID != nil {
		msg, err := s.msgRepo.Get(ctx, *conv.LastMessageID)
		if err == nil && !msg.IsDeleted {
			view.LastMessage = &msg
		} else if err != nil && !errors.Is(err, repositories.ErrMessageNotFound) {
			log.Printf("load last message for conversation %d: %v", conv.ID, err)
		}
	}
	return view, nil
}

func (s *ConversationService) getConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, conversationID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, fmt.Errorf("%w: conversation", ErrNotFound)
	}
	return conv, err
}

func (s *ConversationService) requireParticipant(ctx context.Context, conversationID, userID int) error {
	member, err := s.convRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a participant", ErrNotAuthorized)
	}
	return nil
}

func (s *ConversationService) requireUsers(ctx context.Context, userIDs []int) error {
	users, err := s.userRepo.BulkByIDs(ctx, userIDs)
	if err != nil {
		return err
	}
	if len(users) != len(userIDs) {
		return fmt.Errorf("%w: participant", ErrNotFound)
	}
	return nil
}

// dedupeWith returns first followed by the rest with duplicates removed,
// preserving input order.
func dedupeWith(first int, rest []int) []int {
	seen := map[int]struct{}{first: {}}
	result := []int{first}
	for _, id := range rest {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
