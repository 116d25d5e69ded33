package seed

import (
	"context"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/teamloop/teamloop-backend/internal/repository"
)

// SeedData populates a development database with a couple of users and a
// team so the invitation flow can be exercised right away.
func SeedData(repos *repository.Repositories) {
	ctx := context.Background()

	existing, _ := repos.UserRepo.FindByEmail(ctx, "asha.rai@teamloop.app")
	if existing != nil {
		log.Println("[Seed] Data already exists, skipping...")
		return
	}

	log.Println("[Seed] Creating initial data...")

	password, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)

	asha := &repository.User{
		Email:        "asha.rai@teamloop.app",
		Name:         "Asha Rai",
		PasswordHash: string(password),
	}
	if err := repos.UserRepo.Create(ctx, asha); err != nil {
		log.Printf("[Seed] Failed to create user: %v", err)
		return
	}

	dinesh := &repository.User{
		Email:        "dinesh.thapa@teamloop.app",
		Name:         "Dinesh Thapa",
		PasswordHash: string(password),
	}
	if err := repos.UserRepo.Create(ctx, dinesh); err != nil {
		log.Printf("[Seed] Failed to create user: %v", err)
		return
	}

	sunita := &repository.User{
		Email:        "sunita.gurung@teamloop.app",
		Name:         "Sunita Gurung",
		PasswordHash: string(password),
	}
	if err := repos.UserRepo.Create(ctx, sunita); err != nil {
		log.Printf("[Seed] Failed to create user: %v", err)
		return
	}

	desc := "Core product team"
	team := &repository.Team{
		Name:        "Product",
		Description: &desc,
		CreatedBy:   asha.ID,
	}
	if err := repos.TeamRepo.Create(ctx, team); err != nil {
		log.Printf("[Seed] Failed to create team: %v", err)
		return
	}

	repos.TeamRepo.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID,
		UserID: asha.ID,
		Role:   "Owner",
	})
	repos.TeamRepo.AddMember(ctx, &repository.TeamMember{
		TeamID: team.ID,
		UserID: dinesh.ID,
		Role:   "Member",
	})

	// A pending invitation for the third user, ready to accept or reject.
	repos.InvitationRepo.Create(ctx, &repository.Invitation{
		SenderID:   asha.ID,
		ReceiverID: sunita.ID,
		TeamID:     team.ID,
		Message:    "Join us on the Product team!",
	})

	log.Println("[Seed] Initial data created")
}
