package workers

import (
	"log"
	"sync"

	"github.com/Swastik2002/Smart-Attendance-System/services"
)

type TrainJob struct {
	StudentID uint
}

// TrainingProcessor runs gallery training jobs off the request path. Each
// student has at most one job queued or running at a time; duplicate enqueues
// while a job is pending are dropped.
type TrainingProcessor struct {
	JobQueue chan TrainJob
	Trainer  *services.TrainingService
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[uint]bool
	Mutex    sync.Mutex
}

func NewTrainingProcessor(trainer *services.TrainingService, queueSize, numWorkers int) *TrainingProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	proc := &TrainingProcessor{
		JobQueue: make(chan TrainJob, queueSize),
		Trainer:  trainer,
		StopChan: make(chan struct{}),
		Pending:  make(map[uint]bool),
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d training worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

func (tp *TrainingProcessor) worker(id int) {
	defer tp.Wg.Done()

	log.Printf("Training worker %d started", id)
	for {
		select {
		case job, ok := <-tp.JobQueue:
			if !ok {
				log.Printf("Training worker %d stopping: Job queue closed", id)
				return
			}

			log.Printf("Worker %d: Training student %d", id, job.StudentID)
			report, err := tp.Trainer.Train(job.StudentID)
			if err != nil {
				log.Printf("Worker %d: ERROR training student %d: %v", id, job.StudentID, err)
			} else {
				log.Printf("Worker %d: Trained student %d (%d embedding(s) from %d photo(s))",
					id, job.StudentID, report.Embeddings, report.Photos)
			}

			tp.Mutex.Lock()
			delete(tp.Pending, job.StudentID)
			tp.Mutex.Unlock()

		case <-tp.StopChan:
			log.Printf("Training worker %d stopping: Stop signal received", id)
			return
		}
	}
}

// QueueJob queues a training job for a student if one is not already pending
func (tp *TrainingProcessor) QueueJob(job TrainJob) bool {
	tp.Mutex.Lock()
	if tp.Pending[job.StudentID] {
		tp.Mutex.Unlock()
		return false
	}
	tp.Pending[job.StudentID] = true
	tp.Mutex.Unlock()

	select {
	case tp.JobQueue <- job:
		log.Printf("Queued training job for student %d", job.StudentID)
		return true
	default:
		log.Printf("WARNING: Training job queue full. Failed to queue student %d", job.StudentID)
		tp.Mutex.Lock()
		delete(tp.Pending, job.StudentID)
		tp.Mutex.Unlock()
		return false
	}
}

func (tp *TrainingProcessor) Stop() {
	log.Println("Stopping training workers...")
	close(tp.StopChan)
	tp.Wg.Wait()
	log.Println("All training workers stopped")
}
