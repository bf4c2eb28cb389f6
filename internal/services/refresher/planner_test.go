package refresher

import (
	"testing"
	"time"

	refreshermocks "repairhub/internal/services/refresher/mocks"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type PlannerSuite struct {
	suite.Suite
}

func (s *PlannerSuite) TestBackoffDelay() {
	p := NewPlanner(DefaultPlannerConfig(), nil)
	s.Equal(5*time.Minute, p.BackoffDelay(1))
	s.Equal(15*time.Minute, p.BackoffDelay(2))
	s.Equal(30*time.Minute, p.BackoffDelay(3))
	s.Equal(60*time.Minute, p.BackoffDelay(4))
	s.Equal(60*time.Minute, p.BackoffDelay(100))
}

func (s *PlannerSuite) TestNextRefreshDelay_Settled() {
	p := NewPlanner(DefaultPlannerConfig(), &refreshermocks.Rand{})
	s.Equal(30*24*time.Hour, p.NextRefreshDelay("Delivered"))
	s.Equal(30*24*time.Hour, p.NextRefreshDelay("Returned to business"))
	s.Equal(30*24*time.Hour, p.NextRefreshDelay("Terminated"))
}

func (s *PlannerSuite) TestNextRefreshDelay_Active_UsesRand() {
	m := &refreshermocks.Rand{}
	m.On("Intn", mock.Anything).Return(0).Maybe()

	p := NewPlanner(PlannerConfig{
		ActiveMinDelay: 10 * time.Minute,
		ActiveMaxDelay: 20 * time.Minute,
	}, m)
	d := p.NextRefreshDelay("In Transit")
	s.Equal(10*time.Minute, d)
	m.AssertExpectations(s.T())
}

func (s *PlannerSuite) TestNextRefreshDelay_Active_NoJitterWhenEqual() {
	p := NewPlanner(DefaultPlannerConfig(), &refreshermocks.Rand{})
	s.Equal(30*time.Minute, p.NextRefreshDelay("Picked Up"))
}

func (s *PlannerSuite) TestNextRefreshDelay_Unknown() {
	p := NewPlanner(DefaultPlannerConfig(), &refreshermocks.Rand{})
	s.Equal(60*time.Minute, p.NextRefreshDelay(""))
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
